package recordstore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemoryBadger(t *testing.T) *BadgerStore {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)

	s := NewBadgerStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore(t *testing.T) {
	runRecordStoreSuite(t, func(t *testing.T) interfaces.RecordStore {
		return newInMemoryBadger(t).WithClock(func() time.Time { return fixedTime })
	})
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := OpenBadgerStore(dir, log)
	require.NoError(t, err)
	s.WithClock(func() time.Time { return fixedTime })

	require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))
	require.NoError(t, s.Store(ctx, readerD, "d2", "h2", "m2"))
	require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))
	require.NoError(t, s.Close())

	s, err = OpenBadgerStore(dir, log)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Retrieve(ctx, readerD, "d1")
	require.NoError(t, err)
	assert.Equal(t, "h1", rec.CipherHash)
	assert.Equal(t, fixedTime.Unix(), rec.Timestamp)

	assert.ErrorIs(t, s.Store(ctx, readerD, "d1", "x", "y"), interfaces.ErrDuplicateID)

	// The sequence counter continues after reopen so order is preserved.
	require.NoError(t, s.Store(ctx, ownerC, "d3", "h3", "m3"))

	all, err := s.ListAllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3"}, all)

	mine, err := s.ListMyIDs(ctx, ownerC)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d3"}, mine)
}

func TestBadgerKeysDoNotCollide(t *testing.T) {
	// An id that is a prefix of another must not alias its access entries.
	ctx := context.Background()
	s := newInMemoryBadger(t)

	require.NoError(t, s.Store(ctx, ownerC, "ab", "h", "m"))
	require.NoError(t, s.Store(ctx, ownerC, "abc", "h", "m"))
	require.NoError(t, s.GrantAccess(ctx, ownerC, "ab", readerD))

	ok, err := s.CheckAccess(ctx, "abc", readerD)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEqual(t, recordKey("ab"), recordKey("abc")[:len(recordKey("ab"))])
}
