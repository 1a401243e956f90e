package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdcpainting/referral_site/models"
)

func newReferral(id, code string) *models.ReferralCode {
	return &models.ReferralCode{Base: models.Base{ID: id}, OwnerID: "owner-1", Code: code}
}

func TestJSONCollectionInsertGetFind(t *testing.T) {
	ctx := context.Background()
	coll := NewJSONCollection[*models.ReferralCode](t.TempDir(), "referrals", "code")

	require.NoError(t, coll.Insert(ctx, newReferral("r1", "AAAA1111")))
	require.NoError(t, coll.Insert(ctx, newReferral("r2", "BBBB2222")))

	got, err := coll.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "BBBB2222", got.Code)
	assert.Equal(t, int64(1), got.Version)
	assert.False(t, got.CreatedAt.IsZero())

	found, err := coll.FindBy(ctx, "code", "AAAA1111")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "r1", found[0].ID)

	byOwner, err := coll.FindBy(ctx, "owner_id", "owner-1")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	unused, err := coll.FindBy(ctx, "used", "false")
	require.NoError(t, err)
	assert.Len(t, unused, 2)

	_, err = coll.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONCollectionInsertRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	coll := NewJSONCollection[*models.ReferralCode](t.TempDir(), "referrals", "code")

	require.NoError(t, coll.Insert(ctx, newReferral("r1", "SAME0000")))
	assert.ErrorIs(t, coll.Insert(ctx, newReferral("r2", "SAME0000")), ErrDuplicate)
	assert.ErrorIs(t, coll.Insert(ctx, newReferral("r1", "OTHER000")), ErrDuplicate)

	all, err := coll.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestJSONCollectionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	coll := NewJSONCollection[*models.ReferralCode](t.TempDir(), "referrals")
	require.NoError(t, coll.Insert(ctx, newReferral("r1", "CODE0001")))

	first, err := coll.Get(ctx, "r1")
	require.NoError(t, err)
	second, err := coll.Get(ctx, "r1")
	require.NoError(t, err)

	first.Used = true
	require.NoError(t, coll.CompareAndSwap(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Used = true
	assert.ErrorIs(t, coll.CompareAndSwap(ctx, second), ErrConflict)

	stored, err := coll.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, stored.Used)
	assert.Equal(t, int64(2), stored.Version)

	assert.ErrorIs(t, coll.CompareAndSwap(ctx, newReferral("nope", "X")), ErrNotFound)
}

func TestJSONCollectionPutAndDelete(t *testing.T) {
	ctx := context.Background()
	coll := NewJSONCollection[*models.ReferralCode](t.TempDir(), "referrals")

	rec := newReferral("r1", "CODE0001")
	require.NoError(t, coll.Put(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	rec.Code = "CODE0002"
	require.NoError(t, coll.Put(ctx, rec))
	assert.Equal(t, int64(2), rec.Version)

	require.NoError(t, coll.Delete(ctx, "r1"))
	assert.ErrorIs(t, coll.Delete(ctx, "r1"), ErrNotFound)
}

func TestJSONCollectionWritesOrderedArrayAtomically(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	coll := NewJSONCollection[*models.ReferralCode](dir, "referrals")

	for i := 0; i < 3; i++ {
		require.NoError(t, coll.Insert(ctx, newReferral(fmt.Sprintf("r%d", i), fmt.Sprintf("CODE%04d", i))))
	}

	data, err := os.ReadFile(filepath.Join(dir, "referrals.json"))
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, "r0", raw[0]["id"])
	assert.Equal(t, "r2", raw[2]["id"])

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestJSONCollectionConcurrentCompareAndSwapHasOneWinner(t *testing.T) {
	ctx := context.Background()
	coll := NewJSONCollection[*models.ReferralCode](t.TempDir(), "referrals")
	require.NoError(t, coll.Insert(ctx, newReferral("r1", "RACE0001")))

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		rec, err := coll.Get(ctx, "r1")
		require.NoError(t, err)
		wg.Add(1)
		go func(rec *models.ReferralCode) {
			defer wg.Done()
			rec.Used = true
			if coll.CompareAndSwap(ctx, rec) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(rec)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestOpenJSONCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	st, err := OpenJSON(dir)
	require.NoError(t, err)

	users, err := st.Users.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}
