package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/types"
)

// AddressResponse is the JSON shape of an address ledger entry
type AddressResponse struct {
	Address     string    `json:"address"`
	PointsTotal int64     `json:"pointsTotal"`
	Created     bool      `json:"created"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newAddressResponse(addr *models.Address, created bool) AddressResponse {
	return AddressResponse{
		Address:     addr.Key,
		PointsTotal: addr.PointsTotal,
		Created:     created,
		CreatedAt:   addr.CreatedAt,
		UpdatedAt:   addr.UpdatedAt,
	}
}

// ScanListResponse is a page of an address's scan history
type ScanListResponse struct {
	Address string               `json:"address"`
	Scans   []*models.ScanRecord `json:"scans"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// handleLookupAddress handles POST /api/addresses/lookup - find or create an address
func (s *Server) handleLookupAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	addr, created, err := s.addressService.FindOrCreate(r.Context(), req.Address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, newAddressResponse(addr, created))
}

// handleGetAddress handles GET /api/addresses/{address} - read-only lookup
func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	addr, err := s.addressService.Lookup(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newAddressResponse(addr, false))
}

// handleListScans handles GET /api/addresses/{address}/scans - newest first
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	page, err := parsePagination(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := s.addressService.ListScans(r.Context(), address, page)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	scans := result.Scans
	if scans == nil {
		scans = []*models.ScanRecord{}
	}
	respondJSON(w, http.StatusOK, ScanListResponse{
		Address: result.Address,
		Scans:   scans,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

// recordScanRequest carries a classification made elsewhere
type recordScanRequest struct {
	MaterialType string   `json:"material_type"`
	IsRecyclable *bool    `json:"is_recyclable"`
	Confidence   *float64 `json:"confidence"`
	ResinCode    *int     `json:"resin_code,omitempty"`
}

// handleRecordScan handles POST /api/addresses/{address}/scans - record a classified scan
func (s *Server) handleRecordScan(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	var req recordScanRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.IsRecyclable == nil {
		respondServiceError(w, r, apperrors.NewValidationError("is_recyclable", "field is required"))
		return
	}
	if req.Confidence == nil {
		respondServiceError(w, r, apperrors.NewValidationError("confidence", "field is required"))
		return
	}

	receipt, err := s.ledgerService.RecordScan(r.Context(), address, &types.MaterialResult{
		MaterialType: req.MaterialType,
		IsRecyclable: *req.IsRecyclable,
		Confidence:   *req.Confidence,
		ResinCode:    req.ResinCode,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

// parsePagination reads limit and offset; absent values take the defaults
func parsePagination(r *http.Request) (types.Pagination, error) {
	query := r.URL.Query()
	page := types.Pagination{}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return page, apperrors.NewInvalidParameterError("limit", "must be a positive integer")
		}
		page.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return page, apperrors.NewInvalidParameterError("offset", "must be a non-negative integer")
		}
		page.Offset = offset
	}

	return page.Normalize(), nil
}
