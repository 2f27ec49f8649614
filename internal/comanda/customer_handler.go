package comanda

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/internal/submission"
	"github.com/appetiteclub/comanda/internal/tracking"
	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Checkout")
	defer finish()
	log := h.log(r)

	var cart submission.Cart
	if !decodeBody(w, r, &cart) {
		return
	}

	res, err := h.pipeline.Submit(r.Context(), cart)
	if err != nil {
		var stepErr *submission.StepError
		switch {
		case errors.Is(err, submission.ErrInvalidCart):
			aqm.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &stepErr) && stepErr.Orphaned:
			log.Errorf("checkout left draft %s orphaned: %v", stepErr.OrderID, err)
			aqm.RespondError(w, http.StatusBadGateway, fmt.Sprintf("Could not complete order %s at step %s, please try again", stepErr.OrderID, stepErr.Step))
		default:
			log.Errorf("cannot submit order: %v", err)
			aqm.RespondError(w, http.StatusBadGateway, "Could not create order, please try again")
		}
		return
	}

	aqm.Respond(w, http.StatusCreated, tracking.FromOrder(res.Order, res.DeliveryFee), nil)
}

func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTracking")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	st, err := h.tracking.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			aqm.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Errorf("cannot load tracking for %s: %v", id, err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not load order")
		return
	}

	aqm.Respond(w, http.StatusOK, st, nil)
}

func (h *Handler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ConfirmDelivery")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	st, err := h.tracking.ConfirmDelivery(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			aqm.RespondError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, order.ErrInvalidTransition):
			aqm.RespondError(w, http.StatusConflict, "Order cannot be confirmed in its current status")
		default:
			log.Errorf("cannot confirm delivery of %s: %v", id, err)
			aqm.RespondError(w, http.StatusBadGateway, "Could not confirm delivery, please try again")
		}
		return
	}

	aqm.Respond(w, http.StatusOK, st, nil)
}
