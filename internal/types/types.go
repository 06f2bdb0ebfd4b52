// Package types provides common type definitions shared across the rescan service.
package types

import (
	"fmt"
	"strings"
)

// MaxMaterialTypeLength bounds the material label stored on a scan record
const MaxMaterialTypeLength = 64

// MaterialResult is the outcome of identifying the material of a scanned item.
// It is produced by the vision classifier (or supplied by a trusted client)
// and consumed by the ledger.
type MaterialResult struct {
	MaterialType string  `json:"material_type"`
	IsRecyclable bool    `json:"is_recyclable"`
	Confidence   float64 `json:"confidence"`
	ResinCode    *int    `json:"resin_code,omitempty"` // 1-7 for plastics
}

// Validate checks that the result can be recorded
func (r *MaterialResult) Validate() error {
	materialType := strings.TrimSpace(r.MaterialType)
	if materialType == "" {
		return &ServiceError{
			Code:    "INVALID_MATERIAL",
			Message: "material_type cannot be empty",
		}
	}
	if len(materialType) > MaxMaterialTypeLength {
		return &ServiceError{
			Code:    "INVALID_MATERIAL",
			Message: fmt.Sprintf("material_type exceeds %d characters", MaxMaterialTypeLength),
			Details: map[string]interface{}{
				"maxLength": MaxMaterialTypeLength,
			},
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ServiceError{
			Code:    "INVALID_CONFIDENCE",
			Message: fmt.Sprintf("confidence must be between 0 and 1, got %v", r.Confidence),
			Details: map[string]interface{}{
				"confidence": r.Confidence,
			},
		}
	}
	if r.ResinCode != nil && (*r.ResinCode < 1 || *r.ResinCode > 7) {
		return &ServiceError{
			Code:    "INVALID_RESIN_CODE",
			Message: fmt.Sprintf("resin_code must be between 1 and 7, got %d", *r.ResinCode),
		}
	}
	return nil
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Pagination carries limit/offset paging parameters
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	// DefaultPageLimit is used when no limit is supplied
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size
	MaxPageLimit = 100
)

// Normalize clamps the pagination into the supported range
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
