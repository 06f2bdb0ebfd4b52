package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/testutil"
)

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	ctx := testutil.Context(t)

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := addrs.WithTx(tx).Create(ctx, "1 main st")
		return err
	})
	require.NoError(t, err)

	_, err = addrs.Lookup(ctx, "1 main st")
	assert.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	ctx := testutil.Context(t)

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := addrs.WithTx(tx).Create(ctx, "1 main st"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = addrs.Lookup(ctx, "1 main st")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	addrs := storage.NewAddressRepository(db, 200)
	ctx := testutil.Context(t)

	assert.Panics(t, func() {
		_ = db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := addrs.WithTx(tx).Create(ctx, "1 main st"); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	})

	_, err := addrs.Lookup(ctx, "1 main st")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestWithTx_CanceledContext(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, errors.Is(err, apperrors.ErrTimeout), "got %v", err)
}

func TestDB_Ping(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	assert.NoError(t, db.Ping(testutil.Context(t)))
	assert.Equal(t, "sqlite", db.Driver())
}
