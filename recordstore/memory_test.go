package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runRecordStoreSuite(t, func(t *testing.T) interfaces.RecordStore {
		return NewMemoryStore().WithClock(func() time.Time { return fixedTime })
	})
}

func TestMemoryStoreListingsAreSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Store(ctx, ownerC, "d1", "h", "m"))

	all, err := s.ListAllIDs(ctx)
	require.NoError(t, err)
	all[0] = "tampered"

	mine, err := s.ListMyIDs(ctx, ownerC)
	require.NoError(t, err)
	mine[0] = "tampered"

	all, err = s.ListAllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, all)

	mine, err = s.ListMyIDs(ctx, ownerC)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, mine)
}

func TestMemoryStoreTimestampFromClock(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(100, 0)
	s := NewMemoryStore().WithClock(func() time.Time { return now })

	require.NoError(t, s.Store(ctx, ownerC, "d1", "h", "m"))
	now = time.Unix(200, 0)
	require.NoError(t, s.Store(ctx, ownerC, "d2", "h", "m"))
	require.NoError(t, s.UpdateData(ctx, ownerC, "d1", "h2", "m2"))

	rec, err := s.Retrieve(ctx, ownerC, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.Timestamp)

	rec, err = s.Retrieve(ctx, ownerC, "d2")
	require.NoError(t, err)
	assert.Equal(t, int64(200), rec.Timestamp)
}
