package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/testutil"
	"github.com/rescan/internal/types"
)

func newTestCache(t *testing.T) *storage.CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return storage.NewCacheService(storage.NewRedisCacheFromClient(client), time.Minute)
}

func TestAddressService_LookupHasNoSideEffects(t *testing.T) {
	f := newLedgerFixture(t)
	svc := NewAddressService(f.stores, nil)
	ctx := testutil.Context(t)

	_, err := svc.Lookup(ctx, "10 Downing St")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = svc.Lookup(ctx, "10 Downing St")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	addr, created, err := svc.FindOrCreate(ctx, "10 Downing St")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Zero(t, addr.PointsTotal)

	again, created, err := svc.FindOrCreate(ctx, "10 DOWNING  st")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, addr.Key, again.Key)
}

func TestAddressService_LookupUsesCache(t *testing.T) {
	f := newLedgerFixture(t)
	cache := newTestCache(t)
	svc := NewAddressService(f.stores, cache)
	ctx := testutil.Context(t)

	_, _, err := svc.FindOrCreate(ctx, "22 Acacia Avenue")
	require.NoError(t, err)

	first, err := svc.Lookup(ctx, "22 Acacia Avenue")
	require.NoError(t, err)

	cached, found, err := cache.GetAddress(ctx, first.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.PointsTotal, cached.PointsTotal)

	second, err := svc.Lookup(ctx, "22 ACACIA avenue")
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
}

// interleavedLookup runs after once the database read has returned and
// before the caller continues
type interleavedLookup struct {
	AddressStore
	after func()
}

func (l *interleavedLookup) Lookup(ctx context.Context, address string) (*models.Address, error) {
	addr, err := l.AddressStore.Lookup(ctx, address)
	if l.after != nil {
		l.after()
	}
	return addr, err
}

func TestAddressService_LookupNeverCachesStaleBalance(t *testing.T) {
	f := newLedgerFixture(t)
	cache := newTestCache(t)
	ledger := NewLedgerService(f.stores, DefaultPointsPolicy(), time.Second, cache, nil)
	ctx := testutil.Context(t)

	_, err := ledger.RecordScan(ctx, "5 Elm Row", recyclable("PET"))
	require.NoError(t, err)

	var once sync.Once
	stores := *f.stores
	stores.Addresses = &interleavedLookup{
		AddressStore: f.stores.Addresses,
		after: func() {
			once.Do(func() {
				_, err := ledger.RecordScan(ctx, "5 Elm Row", recyclable("HDPE"))
				require.NoError(t, err)
			})
		},
	}
	svc := NewAddressService(&stores, cache)

	// the row was read before the second scan committed
	first, err := svc.Lookup(ctx, "5 Elm Row")
	require.NoError(t, err)
	assert.Equal(t, int64(100), first.PointsTotal)

	_, found, err := cache.GetAddress(ctx, first.Key)
	require.NoError(t, err)
	assert.False(t, found, "an entry read before the commit must not be cached")

	second, err := svc.Lookup(ctx, "5 ELM ROW")
	require.NoError(t, err)
	assert.Equal(t, int64(200), second.PointsTotal)

	cached, found, err := cache.GetAddress(ctx, first.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(200), cached.PointsTotal)
}

func TestAddressService_Validation(t *testing.T) {
	f := newLedgerFixture(t)
	svc := NewAddressService(f.stores, nil)
	ctx := testutil.Context(t)

	for _, address := range []string{"", "   ", strings.Repeat("a", storage.DefaultMaxAddressLength+1)} {
		_, err := svc.Lookup(ctx, address)
		assert.True(t, errors.Is(err, apperrors.ErrValidation), "address %q: %v", address, err)
	}
}

func TestAddressService_ListScansPaginates(t *testing.T) {
	f := newLedgerFixture(t)
	svc := NewAddressService(f.stores, nil)
	ctx := testutil.Context(t)

	var ids []string
	for i := 0; i < 5; i++ {
		receipt, err := f.ledger.RecordScan(ctx, "6 Hill Rd", recyclable("PET"))
		require.NoError(t, err)
		ids = append(ids, receipt.Scan.ID)
	}

	page, err := svc.ListScans(ctx, " 6  HILL rd", types.Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "6 hill rd", page.Address)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Scans, 2)
	assert.Equal(t, ids[4], page.Scans[0].ID)
	assert.Equal(t, ids[3], page.Scans[1].ID)

	page, err = svc.ListScans(ctx, "6 hill rd", types.Pagination{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Offset)
	require.Len(t, page.Scans, 1)
	assert.Equal(t, ids[0], page.Scans[0].ID)

	empty, err := svc.ListScans(ctx, "Unknown Place", types.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "unknown place", empty.Address)
	assert.Equal(t, types.DefaultPageLimit, empty.Limit)
	assert.NotNil(t, empty.Scans)
	assert.Empty(t, empty.Scans)

	_, err = svc.ListScans(ctx, "   ", types.Pagination{})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestAddressService_AttachFeedback(t *testing.T) {
	f := newLedgerFixture(t)
	svc := NewAddressService(f.stores, nil)
	ctx := testutil.Context(t)

	receipt, err := f.ledger.RecordScan(ctx, "7 River Rd", nonRecyclable("PS"))
	require.NoError(t, err)

	first, err := svc.AttachFeedback(ctx, receipt.Scan.ID, "  this was actually a PP lid ")
	require.NoError(t, err)
	require.NotNil(t, first.Feedback)
	assert.Equal(t, "this was actually a PP lid", *first.Feedback)
	require.NotNil(t, first.FeedbackAt)

	second, err := svc.AttachFeedback(ctx, receipt.Scan.ID, "this was actually a PP lid")
	require.NoError(t, err)
	assert.True(t, first.FeedbackAt.Equal(*second.FeedbackAt))
	assert.Equal(t, receipt.Scan.PointsAwarded, second.PointsAwarded)

	addr, err := svc.Lookup(ctx, "7 River Rd")
	require.NoError(t, err)
	assert.Equal(t, int64(10), addr.PointsTotal)

	_, err = svc.AttachFeedback(ctx, "00000000-0000-4000-8000-000000000000", "hello")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = svc.AttachFeedback(ctx, receipt.Scan.ID, "   ")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	got, err := svc.GetScan(ctx, receipt.Scan.ID)
	require.NoError(t, err)
	assert.Equal(t, "this was actually a PP lid", *got.Feedback)
}
