package internal

import (
	"context"
	"net/http"

	"procurement-api/internal/apperr"
	"procurement-api/internal/auth"
	"procurement-api/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	q := parseListParams(r)
	orders, total, err := s.Services.PurchaseOrders.List(r.Context(), q)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendListResponse(w, orders, total, q)
}

func (s *Server) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := s.Services.PurchaseOrders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, po)
}

func (s *Server) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var in models.PurchaseOrderInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	po, err := s.Services.PurchaseOrders.Create(r.Context(), &in, auth.UserIDFromContext(r.Context()))
	if err != nil {
		sendError(w, r, err)
		return
	}
	w.Header().Set("Location", "/purchase-orders/"+po.ID)
	apperr.WriteData(w, http.StatusCreated, po)
}

func (s *Server) updatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var in models.PurchaseOrderInput
	if err := decodeJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	po, err := s.Services.PurchaseOrders.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, po)
}

func (s *Server) deletePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.Services.PurchaseOrders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) purchaseOrderSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Services.PurchaseOrders.Summary(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, sum)
}

type poAction func(ctx context.Context, id string) (*models.PurchaseOrder, error)

// transition adapts a body-less status action to a handler.
func (s *Server) transition(action poAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		po, err := action(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sendError(w, r, err)
			return
		}
		apperr.WriteData(w, http.StatusOK, po)
	}
}

func (s *Server) submitPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	s.transition(s.Services.PurchaseOrders.Submit)(w, r)
}

// approvePurchaseOrder records the calling user as approver.
func (s *Server) approvePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	approver := auth.UserIDFromContext(r.Context())
	s.transition(func(ctx context.Context, id string) (*models.PurchaseOrder, error) {
		return s.Services.PurchaseOrders.Approve(ctx, id, approver)
	})(w, r)
}

func (s *Server) rejectPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var in models.ReasonInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	s.transition(func(ctx context.Context, id string) (*models.PurchaseOrder, error) {
		return s.Services.PurchaseOrders.Reject(ctx, id, &in)
	})(w, r)
}

func (s *Server) acknowledgePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	s.transition(s.Services.PurchaseOrders.Acknowledge)(w, r)
}

func (s *Server) startPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	s.transition(s.Services.PurchaseOrders.Start)(w, r)
}

func (s *Server) completePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	s.transition(s.Services.PurchaseOrders.Complete)(w, r)
}

func (s *Server) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var in models.ReasonInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		sendError(w, r, err)
		return
	}
	s.transition(func(ctx context.Context, id string) (*models.PurchaseOrder, error) {
		return s.Services.PurchaseOrders.Cancel(ctx, id, &in)
	})(w, r)
}
