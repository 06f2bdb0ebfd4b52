package models

import "time"

// Address is one household ledger entry, keyed by its normalized street address.
// PointsTotal only ever grows, and only through a recorded scan.
type Address struct {
	Key         string    `json:"address" db:"address_key"`
	PointsTotal int64     `json:"pointsTotal" db:"points_total"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
