package service

import (
	"context"
	"database/sql"

	"github.com/rescan/internal/models"
	"github.com/rescan/internal/storage"
)

// AddressStore is the address ledger as seen by the services
type AddressStore interface {
	Normalize(address string) (string, error)
	Lookup(ctx context.Context, address string) (*models.Address, error)
	Create(ctx context.Context, address string) (*models.Address, error)
	FindOrCreate(ctx context.Context, address string) (*models.Address, bool, error)
	AddPoints(ctx context.Context, address string, delta int64) (*models.Address, error)
}

// ScanRecorder is the scan history as seen by the services
type ScanRecorder interface {
	Insert(ctx context.Context, input *models.ScanInput) (*models.ScanRecord, error)
	Get(ctx context.Context, id string) (*models.ScanRecord, error)
	ListByAddress(ctx context.Context, address string, limit, offset int) ([]*models.ScanRecord, error)
	AttachFeedback(ctx context.Context, id string, feedback string) (*models.ScanRecord, error)
	SumPointsByAddress(ctx context.Context, addressKey string) (int64, int64, error)
}

// TxRunner opens transaction scopes
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	WithReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// StoreBinder returns stores whose statements run inside tx
type StoreBinder func(tx *sql.Tx) (AddressStore, ScanRecorder)

// Stores bundles the storage dependencies shared by the services
type Stores struct {
	DB        TxRunner
	Addresses AddressStore
	Scans     ScanRecorder
	Bind      StoreBinder
}

// NewStores wires the SQL repositories over db
func NewStores(db *storage.DB, maxAddressLength int) *Stores {
	addrs := storage.NewAddressRepository(db, maxAddressLength)
	scans := storage.NewScanRepository(db, maxAddressLength)
	return &Stores{
		DB:        db,
		Addresses: addrs,
		Scans:     scans,
		Bind: func(tx *sql.Tx) (AddressStore, ScanRecorder) {
			return addrs.WithTx(tx), scans.WithTx(tx)
		},
	}
}
