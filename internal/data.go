package internal

import (
	"net/http"
	"strings"

	"procurement-api/internal/apperr"
	"procurement-api/internal/store"

	"github.com/go-chi/chi/v5"
)

// proxiedCollections are reachable through /data. Users stay private.
var proxiedCollections = map[string]bool{
	store.Vendors:        true,
	store.Tenders:        true,
	store.PurchaseOrders: true,
}

// reservedParams are list parameters that never become filters.
var reservedParams = map[string]bool{
	"limit": true, "offset": true, "q": true, "sort": true, "ids": true,
}

func collectionParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "collection")
	if !proxiedCollections[name] {
		return "", apperr.NotFound("collection", name)
	}
	return name, nil
}

// dataList lists raw records. ?ids=a,b fetches those records in one call;
// any query parameter other than the paging ones filters by field.
func (s *Server) dataList(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		sendError(w, r, err)
		return
	}

	if raw := r.URL.Query().Get("ids"); raw != "" {
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		recs, err := store.GetMany(r.Context(), s.Store, collection, ids)
		if err != nil {
			sendError(w, r, err)
			return
		}
		apperr.WriteList(w, recs, len(recs), len(ids), 0)
		return
	}

	q := parseListParams(r)
	for key, values := range r.URL.Query() {
		if reservedParams[key] || len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			continue
		}
		if q.Filters == nil {
			q.Filters = map[string]string{}
		}
		q.Filters[key] = strings.TrimSpace(values[0])
	}

	recs, total, err := s.Store.List(r.Context(), collection, q)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendListResponse(w, recs, total, q)
}

func (s *Server) dataGet(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		sendError(w, r, err)
		return
	}
	rec, err := s.Store.Get(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, rec)
}

func (s *Server) dataCreate(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		sendError(w, r, err)
		return
	}
	var rec store.Record
	if err := decodeJSON(r, &rec); err != nil {
		sendError(w, r, err)
		return
	}
	created, err := s.Store.Create(r.Context(), collection, rec)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusCreated, created)
}

func (s *Server) dataUpdate(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		sendError(w, r, err)
		return
	}
	var rec store.Record
	if err := decodeJSON(r, &rec); err != nil {
		sendError(w, r, err)
		return
	}
	updated, err := s.Store.Update(r.Context(), collection, chi.URLParam(r, "id"), rec)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, updated)
}

func (s *Server) dataDelete(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		sendError(w, r, err)
		return
	}
	if err := s.Store.Delete(r.Context(), collection, chi.URLParam(r, "id")); err != nil {
		sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
