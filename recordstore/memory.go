package recordstore

import (
	"context"
	"sync"
	"time"

	"github.com/ruteri/geodata-registry/interfaces"
)

type memoryRecord struct {
	record interfaces.Record
	access map[interfaces.Identity]struct{}
}

// MemoryStore is an in-process RecordStore.
// All operations are serialized by one lock; reads share it.
type MemoryStore struct {
	mutex   sync.RWMutex
	records map[string]*memoryRecord
	allIDs  []string
	ownerID map[interfaces.Identity][]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryRecord),
		allIDs:  []string{},
		ownerID: make(map[interfaces.Identity][]string),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for record timestamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Store(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.records[id]; exists {
		return interfaces.ErrDuplicateID
	}

	s.records[id] = &memoryRecord{
		record: interfaces.Record{
			ID:           id,
			CipherHash:   cipherHash,
			MetadataHash: metadataHash,
			Timestamp:    s.now().Unix(),
			Owner:        caller,
		},
		access: make(map[interfaces.Identity]struct{}),
	}
	s.allIDs = append(s.allIDs, id)
	s.ownerID[caller] = append(s.ownerID[caller], id)
	return nil
}

func (s *MemoryStore) Retrieve(ctx context.Context, caller interfaces.Identity, id string) (interfaces.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return interfaces.Record{}, interfaces.ErrRecordNotFound
	}
	if !rec.allows(caller) {
		return interfaces.Record{}, interfaces.ErrUnauthorized
	}
	return rec.record, nil
}

func (s *MemoryStore) UpdateData(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, err := s.ownedLocked(caller, id)
	if err != nil {
		return err
	}
	rec.record.CipherHash = cipherHash
	rec.record.MetadataHash = metadataHash
	return nil
}

func (s *MemoryStore) GrantAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, err := s.ownedLocked(caller, id)
	if err != nil {
		return err
	}
	rec.access[grantee] = struct{}{}
	return nil
}

func (s *MemoryStore) RevokeAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, err := s.ownedLocked(caller, id)
	if err != nil {
		return err
	}
	delete(rec.access, grantee)
	return nil
}

func (s *MemoryStore) CheckAccess(ctx context.Context, id string, who interfaces.Identity) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return false, interfaces.ErrRecordNotFound
	}
	return rec.allows(who), nil
}

func (s *MemoryStore) ListAllIDs(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, len(s.allIDs))
	copy(ids, s.allIDs)
	return ids, nil
}

func (s *MemoryStore) ListMyIDs(ctx context.Context, caller interfaces.Identity) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	owned := s.ownerID[caller]
	ids := make([]string, len(owned))
	copy(ids, owned)
	return ids, nil
}

// ownedLocked looks up a record the caller must own. Existence is checked first.
func (s *MemoryStore) ownedLocked(caller interfaces.Identity, id string) (*memoryRecord, error) {
	rec, exists := s.records[id]
	if !exists {
		return nil, interfaces.ErrRecordNotFound
	}
	if rec.record.Owner != caller {
		return nil, interfaces.ErrUnauthorized
	}
	return rec, nil
}

func (r *memoryRecord) allows(who interfaces.Identity) bool {
	if r.record.Owner == who {
		return true
	}
	_, granted := r.access[who]
	return granted
}
