package internal

import (
	"net/http"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// LIST with filters & pagination
func (s *Server) listVendors(w http.ResponseWriter, r *http.Request) {
	q := parseListParams(r)
	// vendors hold a categories list; ?category= matches membership
	if c, ok := q.Filters["category"]; ok {
		delete(q.Filters, "category")
		q.Filters["categories"] = c
	}
	vendors, total, err := s.Services.Vendors.List(r.Context(), q)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendListResponse(w, vendors, total, q)
}

func (s *Server) getVendor(w http.ResponseWriter, r *http.Request) {
	v, err := s.Services.Vendors.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, v)
}

func (s *Server) createVendor(w http.ResponseWriter, r *http.Request) {
	var in models.VendorInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	v, err := s.Services.Vendors.Create(r.Context(), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	w.Header().Set("Location", "/vendors/"+v.ID)
	apperr.WriteData(w, http.StatusCreated, v)
}

func (s *Server) updateVendor(w http.ResponseWriter, r *http.Request) {
	var in models.VendorInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	v, err := s.Services.Vendors.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, v)
}

func (s *Server) deleteVendor(w http.ResponseWriter, r *http.Request) {
	if err := s.Services.Vendors.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// changeVendorStatus handles activate, deactivate and blacklist.
func (s *Server) changeVendorStatus(w http.ResponseWriter, r *http.Request) {
	var in models.VendorStatusChange
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	v, err := s.Services.Vendors.ChangeStatus(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, v)
}

func (s *Server) vendorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Services.Vendors.Stats(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, stats)
}
