package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "site.db")), gormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return OpenStore(db)
}

func newReferral(id, code string) *models.ReferralCode {
	return &models.ReferralCode{Base: models.Base{ID: id}, OwnerID: "owner-1", Code: code}
}

func TestCollectionInsertGetFind(t *testing.T) {
	ctx := context.Background()
	referrals := openTestStore(t).Referrals

	require.NoError(t, referrals.Insert(ctx, newReferral("r1", "AAAA1111")))
	require.NoError(t, referrals.Insert(ctx, newReferral("r2", "BBBB2222")))

	got, err := referrals.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "BBBB2222", got.Code)
	assert.Equal(t, int64(1), got.Version)

	found, err := referrals.FindBy(ctx, "code", "AAAA1111")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "r1", found[0].ID)

	all, err := referrals.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = referrals.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCollectionInsertRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	referrals := openTestStore(t).Referrals

	require.NoError(t, referrals.Insert(ctx, newReferral("r1", "SAME0000")))
	assert.ErrorIs(t, referrals.Insert(ctx, newReferral("r2", "SAME0000")), store.ErrDuplicate)
	assert.ErrorIs(t, referrals.Insert(ctx, newReferral("r1", "OTHER000")), store.ErrDuplicate)

	all, err := referrals.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCollectionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	referrals := openTestStore(t).Referrals
	require.NoError(t, referrals.Insert(ctx, newReferral("r1", "CODE0001")))

	first, err := referrals.Get(ctx, "r1")
	require.NoError(t, err)
	second, err := referrals.Get(ctx, "r1")
	require.NoError(t, err)

	first.Used = true
	require.NoError(t, referrals.CompareAndSwap(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Used = true
	assert.ErrorIs(t, referrals.CompareAndSwap(ctx, second), store.ErrConflict)
	assert.Equal(t, int64(1), second.Version)

	stored, err := referrals.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, stored.Used)
	assert.Equal(t, int64(2), stored.Version)

	assert.ErrorIs(t, referrals.CompareAndSwap(ctx, newReferral("nope", "X")), store.ErrNotFound)
}

func TestCollectionPutAndDelete(t *testing.T) {
	ctx := context.Background()
	referrals := openTestStore(t).Referrals

	rec := newReferral("r1", "CODE0001")
	require.NoError(t, referrals.Put(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	rec.Code = "CODE0002"
	require.NoError(t, referrals.Put(ctx, rec))
	assert.Equal(t, int64(2), rec.Version)

	stored, err := referrals.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "CODE0002", stored.Code)
	assert.Equal(t, int64(2), stored.Version)

	require.NoError(t, referrals.Delete(ctx, "r1"))
	assert.ErrorIs(t, referrals.Delete(ctx, "r1"), store.ErrNotFound)
}

func TestCollectionConcurrentCompareAndSwapHasOneWinner(t *testing.T) {
	ctx := context.Background()
	referrals := openTestStore(t).Referrals
	require.NoError(t, referrals.Insert(ctx, newReferral("r1", "RACE0001")))

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		rec, err := referrals.Get(ctx, "r1")
		require.NoError(t, err)
		wg.Add(1)
		go func(rec *models.ReferralCode) {
			defer wg.Done()
			rec.Used = true
			err := referrals.CompareAndSwap(ctx, rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, store.ErrConflict):
				conflicts++
			}
		}(rec)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}
