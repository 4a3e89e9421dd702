package registry

import (
	"context"

	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRecordStore mocks the RecordStore interface
type MockRecordStore struct {
	mock.Mock
}

// Store mocks the Store method
func (m *MockRecordStore) Store(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	args := m.Called(ctx, caller, id, cipherHash, metadataHash)
	return args.Error(0)
}

// Retrieve mocks the Retrieve method
func (m *MockRecordStore) Retrieve(ctx context.Context, caller interfaces.Identity, id string) (interfaces.Record, error) {
	args := m.Called(ctx, caller, id)
	return args.Get(0).(interfaces.Record), args.Error(1)
}

// UpdateData mocks the UpdateData method
func (m *MockRecordStore) UpdateData(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	args := m.Called(ctx, caller, id, cipherHash, metadataHash)
	return args.Error(0)
}

// GrantAccess mocks the GrantAccess method
func (m *MockRecordStore) GrantAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	args := m.Called(ctx, caller, id, grantee)
	return args.Error(0)
}

// RevokeAccess mocks the RevokeAccess method
func (m *MockRecordStore) RevokeAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	args := m.Called(ctx, caller, id, grantee)
	return args.Error(0)
}

// CheckAccess mocks the CheckAccess method
func (m *MockRecordStore) CheckAccess(ctx context.Context, id string, who interfaces.Identity) (bool, error) {
	args := m.Called(ctx, id, who)
	return args.Bool(0), args.Error(1)
}

// ListAllIDs mocks the ListAllIDs method
func (m *MockRecordStore) ListAllIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// ListMyIDs mocks the ListMyIDs method
func (m *MockRecordStore) ListMyIDs(ctx context.Context, caller interfaces.Identity) ([]string, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
