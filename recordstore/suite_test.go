package recordstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Unix(1700000000, 0)

func identity(b byte) interfaces.Identity {
	var id interfaces.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var (
	ownerC   = identity(0xc)
	readerD  = identity(0xd)
	strangeE = identity(0xe)
)

// runRecordStoreSuite exercises the observable behaviour every RecordStore
// must share. newStore must return an empty store whose clock is fixedTime.
func runRecordStoreSuite(t *testing.T, newStore func(t *testing.T) interfaces.RecordStore) {
	ctx := context.Background()

	t.Run("UnknownIDIsNotFound", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Retrieve(ctx, ownerC, "missing")
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

		err = s.UpdateData(ctx, ownerC, "missing", "h", "m")
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

		err = s.GrantAccess(ctx, ownerC, "missing", readerD)
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

		err = s.RevokeAccess(ctx, ownerC, "missing", readerD)
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

		_, err = s.CheckAccess(ctx, "missing", ownerC)
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
	})

	t.Run("StoreThenRetrieve", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))

		rec, err := s.Retrieve(ctx, ownerC, "d1")
		require.NoError(t, err)
		assert.Equal(t, interfaces.Record{
			ID:           "d1",
			CipherHash:   "h1",
			MetadataHash: "m1",
			Timestamp:    fixedTime.Unix(),
			Owner:        ownerC,
		}, rec)
	})

	t.Run("DuplicateIDRejected", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))

		for _, caller := range []interfaces.Identity{ownerC, readerD} {
			err := s.Store(ctx, caller, "d1", "other", "other")
			assert.ErrorIs(t, err, interfaces.ErrDuplicateID)
		}

		rec, err := s.Retrieve(ctx, ownerC, "d1")
		require.NoError(t, err)
		assert.Equal(t, "h1", rec.CipherHash)
		assert.Equal(t, "m1", rec.MetadataHash)
		assert.Equal(t, ownerC, rec.Owner)
		assert.Equal(t, fixedTime.Unix(), rec.Timestamp)

		all, err := s.ListAllIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1"}, all)

		mine, err := s.ListMyIDs(ctx, readerD)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("GrantRevokeScenario", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))

		_, err := s.Retrieve(ctx, readerD, "d1")
		assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))

		ownerView, err := s.Retrieve(ctx, ownerC, "d1")
		require.NoError(t, err)
		readerView, err := s.Retrieve(ctx, readerD, "d1")
		require.NoError(t, err)
		assert.Equal(t, ownerView, readerView)
		assert.Equal(t, "h1", readerView.CipherHash)
		assert.Equal(t, "m1", readerView.MetadataHash)
		assert.Equal(t, ownerC, readerView.Owner)

		require.NoError(t, s.RevokeAccess(ctx, ownerC, "d1", readerD))

		_, err = s.Retrieve(ctx, readerD, "d1")
		assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

		_, err = s.Retrieve(ctx, strangeE, "missing")
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
	})

	t.Run("OnlyOwnerMutates", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))
		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))

		// A grant gives read access only.
		assert.ErrorIs(t, s.UpdateData(ctx, readerD, "d1", "h2", "m2"), interfaces.ErrUnauthorized)
		assert.ErrorIs(t, s.GrantAccess(ctx, readerD, "d1", strangeE), interfaces.ErrUnauthorized)
		assert.ErrorIs(t, s.RevokeAccess(ctx, readerD, "d1", readerD), interfaces.ErrUnauthorized)
		assert.ErrorIs(t, s.UpdateData(ctx, strangeE, "d1", "h2", "m2"), interfaces.ErrUnauthorized)

		rec, err := s.Retrieve(ctx, ownerC, "d1")
		require.NoError(t, err)
		assert.Equal(t, "h1", rec.CipherHash)
		assert.Equal(t, "m1", rec.MetadataHash)

		ok, err := s.CheckAccess(ctx, "d1", strangeE)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = s.CheckAccess(ctx, "d1", readerD)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("OwnerUpdateKeepsTimestampOwnerAndAccess", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))
		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))

		require.NoError(t, s.UpdateData(ctx, ownerC, "d1", "h2", "m2"))

		rec, err := s.Retrieve(ctx, readerD, "d1")
		require.NoError(t, err)
		assert.Equal(t, "h2", rec.CipherHash)
		assert.Equal(t, "m2", rec.MetadataHash)
		assert.Equal(t, fixedTime.Unix(), rec.Timestamp)
		assert.Equal(t, ownerC, rec.Owner)
	})

	t.Run("GrantAndRevokeAreIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))

		require.NoError(t, s.RevokeAccess(ctx, ownerC, "d1", readerD))
		ok, err := s.CheckAccess(ctx, "d1", readerD)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))
		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))
		ok, err = s.CheckAccess(ctx, "d1", readerD)
		require.NoError(t, err)
		assert.True(t, ok)

		// A single revoke undoes any number of grants.
		require.NoError(t, s.RevokeAccess(ctx, ownerC, "d1", readerD))
		ok, err = s.CheckAccess(ctx, "d1", readerD)
		require.NoError(t, err)
		assert.False(t, ok)

		// Granting or revoking the owner never removes the owner's access.
		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", ownerC))
		require.NoError(t, s.RevokeAccess(ctx, ownerC, "d1", ownerC))
		ok, err = s.CheckAccess(ctx, "d1", ownerC)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CheckAccessMatchesRetrieve", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))
		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))

		for _, who := range []interfaces.Identity{ownerC, readerD, strangeE, interfaces.ZeroIdentity} {
			ok, err := s.CheckAccess(ctx, "d1", who)
			require.NoError(t, err)

			_, retrieveErr := s.Retrieve(ctx, who, "d1")
			if ok {
				assert.NoError(t, retrieveErr, who.String())
			} else {
				assert.ErrorIs(t, retrieveErr, interfaces.ErrUnauthorized, who.String())
			}
		}
	})

	t.Run("AccessIsPerRecord", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Store(ctx, ownerC, "d1", "h1", "m1"))
		require.NoError(t, s.Store(ctx, ownerC, "d2", "h2", "m2"))
		require.NoError(t, s.GrantAccess(ctx, ownerC, "d1", readerD))

		_, err := s.Retrieve(ctx, readerD, "d1")
		assert.NoError(t, err)
		_, err = s.Retrieve(ctx, readerD, "d2")
		assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	})

	t.Run("ListingsKeepCreationOrder", func(t *testing.T) {
		s := newStore(t)

		all, err := s.ListAllIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		require.NoError(t, s.Store(ctx, ownerC, "c-1", "h", "m"))
		require.NoError(t, s.Store(ctx, readerD, "d-1", "h", "m"))
		require.NoError(t, s.Store(ctx, ownerC, "c-2", "h", "m"))
		require.NoError(t, s.Store(ctx, ownerC, "a-3", "h", "m"))
		assert.ErrorIs(t, s.Store(ctx, readerD, "c-1", "h", "m"), interfaces.ErrDuplicateID)

		// Grants never touch the indexes.
		require.NoError(t, s.GrantAccess(ctx, ownerC, "c-1", readerD))

		all, err = s.ListAllIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c-1", "d-1", "c-2", "a-3"}, all)

		mine, err := s.ListMyIDs(ctx, ownerC)
		require.NoError(t, err)
		assert.Equal(t, []string{"c-1", "c-2", "a-3"}, mine)

		mine, err = s.ListMyIDs(ctx, readerD)
		require.NoError(t, err)
		assert.Equal(t, []string{"d-1"}, mine)

		mine, err = s.ListMyIDs(ctx, strangeE)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("ConcurrentStores", func(t *testing.T) {
		s := newStore(t)

		const writers = 8
		const perWriter = 25

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				caller := identity(byte(w + 1))
				for i := 0; i < perWriter; i++ {
					assert.NoError(t, s.Store(ctx, caller, fmt.Sprintf("w%d-%d", w, i), "h", "m"))
					// Every writer also races on one shared id.
					err := s.Store(ctx, caller, "shared", "h", "m")
					if err != nil {
						assert.ErrorIs(t, err, interfaces.ErrDuplicateID)
					}
				}
			}(w)
		}
		wg.Wait()

		all, err := s.ListAllIDs(ctx)
		require.NoError(t, err)
		assert.Len(t, all, writers*perWriter+1)

		seen := make(map[string]bool, len(all))
		for _, id := range all {
			assert.False(t, seen[id], "duplicate id %s in global index", id)
			seen[id] = true
		}

		for w := 0; w < writers; w++ {
			mine, err := s.ListMyIDs(ctx, identity(byte(w+1)))
			require.NoError(t, err)
			var own []string
			for _, id := range mine {
				if id != "shared" {
					own = append(own, id)
				}
			}
			require.Len(t, own, perWriter)
			for i, id := range own {
				assert.Equal(t, fmt.Sprintf("w%d-%d", w, i), id)
			}
		}
	})
}
