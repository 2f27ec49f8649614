package comanda

import (
	"errors"
	"net/http"

	"github.com/appetiteclub/comanda/internal/courier"
	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListAvailable")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": h.courier.Available(),
	}, nil)
}

func (h *Handler) RefreshAvailable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RefreshAvailable")
	defer finish()
	log := h.log(r)

	if err := h.courier.Refresh(r.Context()); err != nil {
		log.Errorf("cannot refresh courier pool: %v", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not load ready orders")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": h.courier.Available(),
	}, nil)
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListActive")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"deliveries": h.courier.Active(),
	}, nil)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListHistory")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"deliveries": h.courier.History(r.Context()),
	}, nil)
}

func (h *Handler) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AcceptDelivery")
	defer finish()

	d, ok := h.courier.Accept(chi.URLParam(r, "id"))
	if !ok {
		aqm.RespondError(w, http.StatusConflict, "Order not available")
		return
	}
	aqm.Respond(w, http.StatusOK, d, nil)
}

func (h *Handler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StartDelivery")
	defer finish()

	d, ok := h.courier.Start(chi.URLParam(r, "id"))
	if !ok {
		aqm.RespondError(w, http.StatusNotFound, "Delivery not found")
		return
	}
	aqm.Respond(w, http.StatusOK, d, nil)
}

func (h *Handler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelDelivery")
	defer finish()

	if !h.courier.Cancel(chi.URLParam(r, "id")) {
		aqm.RespondError(w, http.StatusNotFound, "Delivery not found")
		return
	}
	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"deliveries": h.courier.Active(),
	}, nil)
}

func (h *Handler) FinishDelivery(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FinishDelivery")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	entry, err := h.courier.Finish(r.Context(), id)
	if err != nil {
		if errors.Is(err, courier.ErrNotAccepted) {
			aqm.RespondError(w, http.StatusNotFound, "Delivery not found")
			return
		}
		if errors.Is(err, courier.ErrFinishing) {
			aqm.RespondError(w, http.StatusConflict, "Delivery is already being finished")
			return
		}
		log.Errorf("cannot finish delivery %s: %v", id, err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not finish delivery, please try again")
		return
	}

	aqm.Respond(w, http.StatusOK, entry, nil)
}
