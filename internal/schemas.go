package internal

import (
	"net/http"

	"procurement-api/internal/apperr"
	"procurement-api/internal/schema"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	apperr.WriteData(w, http.StatusOK, s.Schemas.List())
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	fs, err := s.Schemas.Get(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, fs)
}

// validationResult is the body of POST /schemas/{id}/validate.
type validationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// validateSchemaRecord checks a posted record against the schema's field
// rules. Rule failures are reported in the result, not as an error status.
func (s *Server) validateSchemaRecord(w http.ResponseWriter, r *http.Request) {
	fs, err := s.Schemas.Get(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	var rec map[string]any
	if err := decodeJSON(r, &rec); err != nil {
		sendError(w, r, err)
		return
	}
	errs := schema.ValidateRecord(fs, rec)
	if errs == nil {
		errs = map[string]string{}
	}
	apperr.WriteData(w, http.StatusOK, validationResult{Valid: len(errs) == 0, Errors: errs})
}

// schemaCards renders a page of the schema's collection as cards.
func (s *Server) schemaCards(w http.ResponseWriter, r *http.Request) {
	fs, err := s.Schemas.Get(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	q := parseListParams(r)
	for _, role := range []string{schema.RoleTitle, schema.RoleSubtitle, schema.RoleCode} {
		for _, f := range schema.FieldsByRole(fs, role) {
			q.SearchFields = append(q.SearchFields, f.Name)
		}
	}

	recs, total, err := s.Store.List(r.Context(), fs.Entity, q)
	if err != nil {
		sendError(w, r, err)
		return
	}
	cards, err := schema.BuildCards(fs, recs, r.URL.Query().Get("view"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendListResponse(w, cards, total, q)
}

// schemaCard renders one posted record.
func (s *Server) schemaCard(w http.ResponseWriter, r *http.Request) {
	fs, err := s.Schemas.Get(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	var rec map[string]any
	if err := decodeJSON(r, &rec); err != nil {
		sendError(w, r, err)
		return
	}
	card, err := schema.BuildCard(fs, rec, r.URL.Query().Get("view"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, card)
}
