package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/models"
)

// DefaultMaxAddressLength bounds a normalized address key
const DefaultMaxAddressLength = 200

// NormalizeAddress trims the address, collapses internal whitespace to a
// single space and case-folds it. Two spellings that normalize to the same
// key are the same household.
func NormalizeAddress(address string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxAddressLength
	}

	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	if key == "" {
		return "", apperrors.NewInvalidAddressError(address, "address must not be empty")
	}
	if utf8.RuneCountInString(key) > maxLength {
		return "", apperrors.NewInvalidAddressError(address,
			fmt.Sprintf("address exceeds %d characters", maxLength))
	}
	return key, nil
}

// AddressRepository handles address ledger persistence
type AddressRepository struct {
	q         querier
	maxLength int
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *DB, maxAddressLength int) *AddressRepository {
	return &AddressRepository{q: db.SQL(), maxLength: maxAddressLength}
}

// WithTx returns a repository bound to tx
func (r *AddressRepository) WithTx(tx *sql.Tx) *AddressRepository {
	return &AddressRepository{q: tx, maxLength: r.maxLength}
}

// Normalize applies the repository's address normalization rules
func (r *AddressRepository) Normalize(address string) (string, error) {
	return NormalizeAddress(address, r.maxLength)
}

const selectAddress = `
	SELECT address_key, points_total, created_at, updated_at
	FROM addresses
	WHERE address_key = $1
`

// Lookup retrieves an address by key. It never creates one.
func (r *AddressRepository) Lookup(ctx context.Context, address string) (*models.Address, error) {
	key, err := r.Normalize(address)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, key)
}

func (r *AddressRepository) get(ctx context.Context, key string) (*models.Address, error) {
	var addr models.Address
	err := r.q.QueryRowContext(ctx, selectAddress, key).Scan(
		&addr.Key,
		&addr.PointsTotal,
		&addr.CreatedAt,
		&addr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("address", key)
		}
		return nil, classify("lookup address", err)
	}
	addr.CreatedAt = addr.CreatedAt.UTC()
	addr.UpdatedAt = addr.UpdatedAt.UTC()
	return &addr, nil
}

// Create inserts a new address with a zero balance. It fails with a
// duplicate key error if the address already exists.
func (r *AddressRepository) Create(ctx context.Context, address string) (*models.Address, error) {
	key, err := r.Normalize(address)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO addresses (address_key, points_total, created_at, updated_at)
		VALUES ($1, 0, $2, $3)
	`
	if _, err := r.q.ExecContext(ctx, query, key, now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewDuplicateKeyError("address", key, err)
		}
		return nil, classify("create address", err)
	}

	return &models.Address{Key: key, PointsTotal: 0, CreatedAt: now, UpdatedAt: now}, nil
}

// FindOrCreate returns the address, inserting it first when absent. The
// insert is a no-op on conflict, so concurrent callers converge on one row.
func (r *AddressRepository) FindOrCreate(ctx context.Context, address string) (*models.Address, bool, error) {
	key, err := r.Normalize(address)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO addresses (address_key, points_total, created_at, updated_at)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (address_key) DO NOTHING
	`
	res, err := r.q.ExecContext(ctx, query, key, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, apperrors.NewDuplicateKeyError("address", key, err)
		}
		return nil, false, classify("find or create address", err)
	}

	created := false
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		created = true
	}

	addr, err := r.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return addr, created, nil
}

// AddPoints atomically increments the address balance by delta
func (r *AddressRepository) AddPoints(ctx context.Context, address string, delta int64) (*models.Address, error) {
	if delta < 0 {
		return nil, apperrors.NewInvalidDeltaError(delta)
	}
	key, err := r.Normalize(address)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE addresses
		SET points_total = points_total + $1, updated_at = $2
		WHERE address_key = $3
	`
	res, err := r.q.ExecContext(ctx, query, delta, time.Now().UTC(), key)
	if err != nil {
		return nil, classify("add points", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, classify("add points", err)
	}
	if n == 0 {
		return nil, apperrors.NewNotFoundError("address", key)
	}

	return r.get(ctx, key)
}

// Count returns the number of known addresses
func (r *AddressRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM addresses`).Scan(&n); err != nil {
		return 0, classify("count addresses", err)
	}
	return n, nil
}
