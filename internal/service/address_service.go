package service

import (
	"context"

	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/types"
)

// AddressService serves address and scan reads plus the non-ledger writes
// (explicit address creation, feedback)
type AddressService struct {
	stores *Stores
	cache  *storage.CacheService
}

// NewAddressService creates a new address service
func NewAddressService(stores *Stores, cache *storage.CacheService) *AddressService {
	return &AddressService{stores: stores, cache: cache}
}

// Lookup returns an address without creating it, consulting the cache first
func (s *AddressService) Lookup(ctx context.Context, address string) (*models.Address, error) {
	key, err := s.stores.Addresses.Normalize(address)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithField("address", key)

	if cached, found, err := s.cache.GetAddress(ctx, key); err != nil {
		logger.WithError(err).Warn("Address cache read failed")
	} else if found {
		return cached, nil
	}

	// The generation is read before the row so that a scan committed in
	// between invalidates the write-back below.
	gen, genErr := s.cache.AddressGeneration(ctx, key)
	if genErr != nil {
		logger.WithError(genErr).Warn("Address cache read failed")
	}

	addr, err := s.stores.Addresses.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		if _, err := s.cache.SetAddressIfCurrent(ctx, addr, gen); err != nil {
			logger.WithError(err).Warn("Address cache write failed")
		}
	}
	return addr, nil
}

// FindOrCreate returns the address, creating it with a zero balance when absent
func (s *AddressService) FindOrCreate(ctx context.Context, address string) (*models.Address, bool, error) {
	return s.stores.Addresses.FindOrCreate(ctx, address)
}

// ScanPage is one page of an address's scan history
type ScanPage struct {
	Address string               `json:"address"`
	Scans   []*models.ScanRecord `json:"scans"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// ListScans returns an address's scans, newest first, under its normalized key
func (s *AddressService) ListScans(ctx context.Context, address string, page types.Pagination) (*ScanPage, error) {
	key, err := s.stores.Addresses.Normalize(address)
	if err != nil {
		return nil, err
	}

	page = page.Normalize()
	scans, err := s.stores.Scans.ListByAddress(ctx, key, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return &ScanPage{Address: key, Scans: scans, Limit: page.Limit, Offset: page.Offset}, nil
}

// GetScan returns one scan
func (s *AddressService) GetScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	return s.stores.Scans.Get(ctx, id)
}

// AttachFeedback stores user feedback on a scan. Points are never adjusted.
func (s *AddressService) AttachFeedback(ctx context.Context, id string, feedback string) (*models.ScanRecord, error) {
	rec, err := s.stores.Scans.AttachFeedback(ctx, id, feedback)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"scanId":  id,
		"address": rec.AddressKey,
	}).Info("Feedback attached")
	return rec, nil
}
