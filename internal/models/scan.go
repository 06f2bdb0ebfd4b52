package models

import "time"

// ScanRecord is the append-only history entry written for every accepted scan.
// Feedback and FeedbackAt are the only fields that change after insert.
type ScanRecord struct {
	ID            string     `json:"id" db:"id"`
	AddressKey    string     `json:"address" db:"address_key"`
	MaterialType  string     `json:"materialType" db:"material_type"`
	IsRecyclable  bool       `json:"isRecyclable" db:"is_recyclable"`
	Confidence    float64    `json:"confidence" db:"confidence"`
	PointsAwarded int64      `json:"pointsAwarded" db:"points_awarded"`
	Feedback      *string    `json:"feedback,omitempty" db:"feedback"`
	FeedbackAt    *time.Time `json:"feedbackAt,omitempty" db:"feedback_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
}

// ScanInput is what the ledger hands to the scan recorder. The address key
// must already be normalized.
type ScanInput struct {
	AddressKey    string
	MaterialType  string
	IsRecyclable  bool
	Confidence    float64
	PointsAwarded int64
}
