package storage_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/testutil"
)

func newScanInput(key string, points int64) *models.ScanInput {
	return &models.ScanInput{
		AddressKey:    key,
		MaterialType:  "PET",
		IsRecyclable:  true,
		Confidence:    0.9,
		PointsAwarded: points,
	}
}

func TestScanRepository_InsertRequiresAddress(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	scans := storage.NewScanRepository(db, 200)
	ctx := testutil.Context(t)

	_, err := scans.Insert(ctx, newScanInput("ghost st", 100))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "got %v", err)
}

func TestScanRepository_InsertValidates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	scans := storage.NewScanRepository(db, 200)
	ctx := testutil.Context(t)

	tests := []struct {
		name   string
		mutate func(*models.ScanInput)
	}{
		{"empty material", func(in *models.ScanInput) { in.MaterialType = " " }},
		{"long material", func(in *models.ScanInput) { in.MaterialType = strings.Repeat("x", 65) }},
		{"confidence above one", func(in *models.ScanInput) { in.Confidence = 1.01 }},
		{"negative confidence", func(in *models.ScanInput) { in.Confidence = -0.1 }},
		{"negative points", func(in *models.ScanInput) { in.PointsAwarded = -1 }},
		{"empty address", func(in *models.ScanInput) { in.AddressKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newScanInput("1 main st", 10)
			tt.mutate(in)
			_, err := scans.Insert(ctx, in)
			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
		})
	}
}

func TestScanRepository_InsertAndGet(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	scans := storage.NewScanRepository(db, 200)
	ctx := testutil.Context(t)

	_, err := addrs.Create(ctx, "1 main st")
	require.NoError(t, err)

	rec, err := scans.Insert(ctx, newScanInput("1 main st", 100))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	got, err := scans.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "PET", got.MaterialType)
	assert.True(t, got.IsRecyclable)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, int64(100), got.PointsAwarded)
	assert.Nil(t, got.Feedback)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)

	// the scan recorder never moves the balance
	addr, err := addrs.Lookup(ctx, "1 main st")
	require.NoError(t, err)
	assert.Zero(t, addr.PointsTotal)

	_, err = scans.Get(ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestScanRepository_ListByAddress(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	scans := storage.NewScanRepository(db, 200)
	ctx := testutil.Context(t)

	_, err := addrs.Create(ctx, "1 main st")
	require.NoError(t, err)
	_, err = addrs.Create(ctx, "2 main st")
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := scans.Insert(ctx, newScanInput("1 main st", int64(i)))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	_, err = scans.Insert(ctx, newScanInput("2 main st", 10))
	require.NoError(t, err)

	list, err := scans.ListByAddress(ctx, "1 MAIN ST", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, rec := range list {
		assert.Equal(t, ids[len(ids)-1-i], rec.ID, "newest first")
	}

	page, err := scans.ListByAddress(ctx, "1 main st", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	empty, err := scans.ListByAddress(ctx, "3 main st", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestScanRepository_AttachFeedbackIsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	scans := storage.NewScanRepository(db, 200)
	ctx := testutil.Context(t)

	_, err := addrs.Create(ctx, "1 main st")
	require.NoError(t, err)
	rec, err := scans.Insert(ctx, newScanInput("1 main st", 100))
	require.NoError(t, err)

	first, err := scans.AttachFeedback(ctx, rec.ID, "actually glass")
	require.NoError(t, err)
	require.NotNil(t, first.Feedback)
	require.NotNil(t, first.FeedbackAt)
	assert.Equal(t, "actually glass", *first.Feedback)

	time.Sleep(5 * time.Millisecond)
	second, err := scans.AttachFeedback(ctx, rec.ID, "actually glass")
	require.NoError(t, err)
	assert.True(t, first.FeedbackAt.Equal(*second.FeedbackAt))

	third, err := scans.AttachFeedback(ctx, rec.ID, "it was aluminum")
	require.NoError(t, err)
	assert.Equal(t, "it was aluminum", *third.Feedback)
	assert.True(t, third.FeedbackAt.After(*first.FeedbackAt))

	// feedback never changes the award
	assert.Equal(t, rec.PointsAwarded, third.PointsAwarded)

	_, err = scans.AttachFeedback(ctx, "missing", "x")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = scans.AttachFeedback(ctx, rec.ID, "  ")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestScanRepository_SumPointsByAddress(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	scans := storage.NewScanRepository(db, 200)
	ctx := testutil.Context(t)

	sum, count, err := scans.SumPointsByAddress(ctx, "1 main st")
	require.NoError(t, err)
	assert.Zero(t, sum)
	assert.Zero(t, count)

	_, err = addrs.Create(ctx, "1 main st")
	require.NoError(t, err)
	for _, pts := range []int64{100, 10, 100} {
		_, err := scans.Insert(ctx, newScanInput("1 main st", pts))
		require.NoError(t, err)
	}

	sum, count, err = scans.SumPointsByAddress(ctx, "1 main st")
	require.NoError(t, err)
	assert.Equal(t, int64(210), sum)
	assert.Equal(t, int64(3), count)
}
