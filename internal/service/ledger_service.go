package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/metrics"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/types"
)

// DefaultScanTimeout bounds one RecordScan transaction
const DefaultScanTimeout = 5 * time.Second

// ScanReceipt is what a caller gets back for a committed scan
type ScanReceipt struct {
	Scan           *models.ScanRecord    `json:"scan"`
	Address        *models.Address       `json:"address"`
	AddressCreated bool                  `json:"addressCreated"`
	Material       *types.MaterialResult `json:"material"`
}

// LedgerService records scans and credits the matching points in a single
// transaction. Either the scan row and the balance change both commit, or
// neither does.
type LedgerService struct {
	stores  *Stores
	policy  PointsPolicy
	timeout time.Duration
	cache   *storage.CacheService
	metrics *metrics.Collector
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	stores *Stores,
	policy PointsPolicy,
	timeout time.Duration,
	cache *storage.CacheService,
	m *metrics.Collector,
) *LedgerService {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &LedgerService{
		stores:  stores,
		policy:  policy,
		timeout: timeout,
		cache:   cache,
		metrics: m,
	}
}

// Policy returns the points policy in effect
func (s *LedgerService) Policy() PointsPolicy {
	return s.policy
}

// RecordScan credits address with the points for result. The address is
// created on first use. Nothing is retried; a failure leaves no trace.
func (s *LedgerService) RecordScan(ctx context.Context, address string, result *types.MaterialResult) (*ScanReceipt, error) {
	if result == nil {
		return nil, apperrors.NewValidationError("material", "result is required")
	}
	if err := result.Validate(); err != nil {
		return nil, apperrors.Categorize(err)
	}
	key, err := s.stores.Addresses.Normalize(address)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"address":  key,
		"material": result.MaterialType,
	})

	points := s.policy.Award(result)

	scopeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var receipt *ScanReceipt
	err = s.stores.DB.WithTx(scopeCtx, func(tx *sql.Tx) error {
		addrs, scans := s.stores.Bind(tx)

		addr, created, err := addrs.FindOrCreate(scopeCtx, key)
		if errors.Is(err, apperrors.ErrDuplicateKey) {
			addr, err = addrs.Lookup(scopeCtx, key)
			created = false
		}
		if err != nil {
			return err
		}

		rec, err := scans.Insert(scopeCtx, &models.ScanInput{
			AddressKey:    addr.Key,
			MaterialType:  result.MaterialType,
			IsRecyclable:  result.IsRecyclable,
			Confidence:    result.Confidence,
			PointsAwarded: points,
		})
		if err != nil {
			return err
		}

		updated, err := addrs.AddPoints(scopeCtx, addr.Key, points)
		if err != nil {
			return err
		}

		receipt = &ScanReceipt{
			Scan:           rec,
			Address:        updated,
			AddressCreated: created,
			Material:       result,
		}
		return nil
	})

	if err != nil {
		catErr := apperrors.Categorize(err)
		if errors.Is(scopeCtx.Err(), context.DeadlineExceeded) && catErr.Category != apperrors.CategoryTimeout {
			catErr = apperrors.NewTimeoutError("record scan", err)
		}
		s.metrics.IncLedgerFailure(string(catErr.Category))
		if apperrors.IsSystemError(catErr) {
			logger.ErrorWithErr("Failed to record scan", catErr)
		} else {
			logger.WithError(catErr).Warn("Scan rejected")
		}
		return nil, catErr
	}

	if err := s.cache.InvalidateAddress(ctx, key); err != nil {
		logger.WithError(err).Warn("Failed to invalidate address cache")
	}
	s.metrics.ObserveScan(result.IsRecyclable, points)

	logger.WithFields(map[string]interface{}{
		"scanId":      receipt.Scan.ID,
		"points":      points,
		"pointsTotal": receipt.Address.PointsTotal,
		"created":     receipt.AddressCreated,
	}).Info("Scan recorded")

	return receipt, nil
}
