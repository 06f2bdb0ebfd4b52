package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleListMaterials handles GET /api/materials
func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	materials := s.materials.All()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"materials": materials,
		"count":     len(materials),
	})
}

// handleGetMaterial handles GET /api/materials/{code}; code may be a resin
// code ("1") or a name ("PET", "glass")
func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	m, ok := s.materials.Lookup(code)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Material not found", map[string]interface{}{
			"code": code,
		})
		return
	}

	respondJSON(w, http.StatusOK, m)
}
