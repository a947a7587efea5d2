package internal

import (
	"net/http"

	"procurement-api/internal/apperr"
	"procurement-api/internal/auth"
	"procurement-api/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listTenders(w http.ResponseWriter, r *http.Request) {
	q := parseListParams(r)
	tenders, total, err := s.Services.Tenders.List(r.Context(), q)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendListResponse(w, tenders, total, q)
}

func (s *Server) getTender(w http.ResponseWriter, r *http.Request) {
	t, err := s.Services.Tenders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, t)
}

func (s *Server) createTender(w http.ResponseWriter, r *http.Request) {
	var in models.TenderInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	t, err := s.Services.Tenders.Create(r.Context(), &in, auth.UserIDFromContext(r.Context()))
	if err != nil {
		sendError(w, r, err)
		return
	}
	w.Header().Set("Location", "/tenders/"+t.ID)
	apperr.WriteData(w, http.StatusCreated, t)
}

func (s *Server) updateTender(w http.ResponseWriter, r *http.Request) {
	var in models.TenderInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	t, err := s.Services.Tenders.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, t)
}

func (s *Server) deleteTender(w http.ResponseWriter, r *http.Request) {
	if err := s.Services.Tenders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) publishTender(w http.ResponseWriter, r *http.Request) {
	t, err := s.Services.Tenders.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, t)
}

func (s *Server) closeTender(w http.ResponseWriter, r *http.Request) {
	t, err := s.Services.Tenders.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, t)
}

func (s *Server) cancelTender(w http.ResponseWriter, r *http.Request) {
	var in models.ReasonInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	t, err := s.Services.Tenders.Cancel(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, t)
}

func (s *Server) listQuotations(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.Services.Tenders.ListQuotations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	if quotes == nil {
		quotes = []models.Quotation{}
	}
	apperr.WriteData(w, http.StatusOK, quotes)
}

func (s *Server) submitQuotation(w http.ResponseWriter, r *http.Request) {
	var in models.QuotationInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	q, err := s.Services.Tenders.SubmitQuotation(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusCreated, q)
}

// evaluateTender ranks the tender's quotations by weighted score.
func (s *Server) evaluateTender(w http.ResponseWriter, r *http.Request) {
	ev, err := s.Services.Tenders.Evaluate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, ev)
}

func (s *Server) awardTender(w http.ResponseWriter, r *http.Request) {
	var in models.AwardInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	t, err := s.Services.Tenders.Award(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, t)
}

func (s *Server) createTenderPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := s.Services.Tenders.CreatePurchaseOrder(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		sendError(w, r, err)
		return
	}
	w.Header().Set("Location", "/purchase-orders/"+po.ID)
	apperr.WriteData(w, http.StatusCreated, po)
}
