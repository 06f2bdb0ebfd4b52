package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rescan/internal/vision"
)

// DefaultMaxUploadBytes bounds an uploaded photo when no limit is configured
const DefaultMaxUploadBytes int64 = 10 << 20

// handleAnalyzeScan handles POST /api/scan - multipart upload of one photo
// plus the address to credit
func (s *Server) handleAnalyzeScan(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	// leave room for the multipart envelope and the address field
	bodyLimit := maxBytes + 64<<10
	if r.ContentLength > bodyLimit {
		respondUploadTooLarge(w, maxBytes)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondUploadTooLarge(w, maxBytes)
			return
		}
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Expected a multipart form with an image", nil)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	address := r.FormValue("address")

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Image file is required", map[string]interface{}{
			"field": "image",
		})
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		respondUploadTooLarge(w, maxBytes)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Failed to read image", nil)
		return
	}

	img := vision.NewImage(data, header.Header.Get("Content-Type"))
	receipt, err := s.scanService.AnalyzeAndRecord(r.Context(), address, img)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

func respondUploadTooLarge(w http.ResponseWriter, maxBytes int64) {
	respondError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Image exceeds the upload limit", map[string]interface{}{
		"maxBytes": maxBytes,
	})
}

// handleGetScan handles GET /api/scans/{id}
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := s.addressService.GetScan(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// handleAttachFeedback handles PUT /api/scans/{id}/feedback
func (s *Server) handleAttachFeedback(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	rec, err := s.addressService.AttachFeedback(r.Context(), id, req.Feedback)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
