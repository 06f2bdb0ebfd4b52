package service

import (
	"context"

	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/types"
	"github.com/rescan/internal/vision"
)

// ScanRecorderService is the part of the ledger the scan flow depends on
type ScanRecorderService interface {
	RecordScan(ctx context.Context, address string, result *types.MaterialResult) (*ScanReceipt, error)
}

// ScanService runs the photo-to-points flow: identify the material, then
// hand the result to the ledger
type ScanService struct {
	classifier vision.Classifier
	ledger     ScanRecorderService
	addresses  AddressStore
}

// NewScanService creates a new scan service
func NewScanService(classifier vision.Classifier, ledger ScanRecorderService, addresses AddressStore) *ScanService {
	return &ScanService{
		classifier: classifier,
		ledger:     ledger,
		addresses:  addresses,
	}
}

// AnalyzeAndRecord classifies img and records the scan for address. A
// classifier failure returns before the ledger is touched.
func (s *ScanService) AnalyzeAndRecord(ctx context.Context, address string, img vision.Image) (*ScanReceipt, error) {
	key, err := s.addresses.Normalize(address)
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	result, err := s.classifier.Classify(ctx, img)
	if err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"address":  key,
			"provider": s.classifier.Name(),
		}).WithError(err).Warn("Material identification failed, no scan recorded")
		return nil, err
	}

	return s.ledger.RecordScan(ctx, key, result)
}
