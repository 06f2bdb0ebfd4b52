package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/rescan/internal/logging"
)

// ConsistencyChecker verifies that an address balance equals the sum of the
// points awarded by its scans
type ConsistencyChecker struct {
	stores *Stores
}

// NewConsistencyChecker creates a new consistency checker
func NewConsistencyChecker(stores *Stores) *ConsistencyChecker {
	return &ConsistencyChecker{stores: stores}
}

// ConsistencyReport represents the result of a consistency check
type ConsistencyReport struct {
	Address     string    `json:"address"`
	PointsTotal int64     `json:"pointsTotal"`
	ScanSum     int64     `json:"scanSum"`
	ScanCount   int64     `json:"scanCount"`
	Drift       int64     `json:"drift"`
	Consistent  bool      `json:"consistent"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// Check reads the balance and the scan sum from one snapshot and compares them
func (cc *ConsistencyChecker) Check(ctx context.Context, address string) (*ConsistencyReport, error) {
	key, err := cc.stores.Addresses.Normalize(address)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{Address: key}
	err = cc.stores.DB.WithReadTx(ctx, func(tx *sql.Tx) error {
		addrs, scans := cc.stores.Bind(tx)

		addr, err := addrs.Lookup(ctx, key)
		if err != nil {
			return err
		}
		sum, count, err := scans.SumPointsByAddress(ctx, key)
		if err != nil {
			return err
		}

		report.PointsTotal = addr.PointsTotal
		report.ScanSum = sum
		report.ScanCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Drift = report.PointsTotal - report.ScanSum
	report.Consistent = report.Drift == 0
	report.CheckedAt = time.Now().UTC()

	if !report.Consistent {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"address":     key,
			"pointsTotal": report.PointsTotal,
			"scanSum":     report.ScanSum,
			"drift":       report.Drift,
		}).Error("Ledger inconsistency detected")
	}
	return report, nil
}
