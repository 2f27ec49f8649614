package comanda

import (
	"net/http"

	"github.com/appetiteclub/comanda/internal/board"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/boardcolumn"
	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
)

type boardCard struct {
	Order          order.Order `json:"order"`
	JustUpdated    bool        `json:"justUpdated"`
	ElapsedMinutes *int        `json:"elapsedMinutes,omitempty"`
	PrepMinutes    *int        `json:"prepMinutes,omitempty"`
}

type boardColumn struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Orders []boardCard `json:"orders"`
}

type moveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	FromIndex int    `json:"fromIndex"`
	ToIndex   int    `json:"toIndex"`
}

type reorderRequest struct {
	Column    string `json:"column"`
	FromIndex int    `json:"fromIndex"`
	ToIndex   int    `json:"toIndex"`
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBoard")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"columns": h.boardView(r),
	}, nil)
}

func (h *Handler) ReloadBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReloadBoard")
	defer finish()
	log := h.log(r)

	if err := h.board.LoadAll(r.Context()); err != nil {
		log.Errorf("cannot reload board: %v", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not load orders")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"columns": h.boardView(r),
	}, nil)
}

func (h *Handler) MoveOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MoveOrder")
	defer finish()
	log := h.log(r)

	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	from, to := boardcolumn.ByName(req.From), boardcolumn.ByName(req.To)
	if from == nil || to == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid column")
		return
	}

	moved, err := h.board.MoveAcrossColumns(r.Context(), *from, *to, req.FromIndex, req.ToIndex)
	if err != nil {
		log.Errorf("cannot move order: %v", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not update order status")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"moved":   moved,
		"columns": h.boardView(r),
	}, nil)
}

func (h *Handler) ReorderColumn(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReorderColumn")
	defer finish()

	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	col := boardcolumn.ByName(req.Column)
	if col == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid column")
		return
	}

	moved := h.board.MoveWithinColumn(*col, req.FromIndex, req.ToIndex)
	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"moved":   moved,
		"columns": h.boardView(r),
	}, nil)
}

func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceOrder")
	defer finish()
	log := h.log(r)

	key := chi.URLParam(r, "key")
	if key == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order key")
		return
	}

	moved, err := h.board.AdvanceByAction(r.Context(), key)
	if err != nil {
		log.Errorf("cannot advance order %s: %v", key, err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not update order status")
		return
	}

	resp := map[string]interface{}{"moved": moved}
	if entry, col, ok := h.board.Find(key); ok {
		resp["column"] = col.Code()
		resp["order"] = h.card(r, entry)
	}
	aqm.Respond(w, http.StatusOK, resp, nil)
}

func (h *Handler) GetPrep(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetPrep")
	defer finish()

	key := chi.URLParam(r, "key")
	rec, ok := h.prep.Record(r.Context(), key)
	if !ok {
		aqm.RespondError(w, http.StatusNotFound, "Preparation not observed")
		return
	}
	aqm.Respond(w, http.StatusOK, rec, nil)
}

func (h *Handler) boardView(r *http.Request) []boardColumn {
	snap := h.board.Snapshot()
	view := make([]boardColumn, 0, len(boardcolumn.All))
	for _, col := range boardcolumn.All {
		entries := snap[col]
		cards := make([]boardCard, len(entries))
		for i, e := range entries {
			cards[i] = h.card(r, e)
		}
		view = append(view, boardColumn{Name: col.Code(), Label: col.Label(), Orders: cards})
	}
	return view
}

func (h *Handler) card(r *http.Request, e board.Entry) boardCard {
	c := boardCard{Order: e.Order, JustUpdated: e.JustUpdated}
	if m, ok := e.Order.ElapsedMinutes(h.now()); ok {
		c.ElapsedMinutes = &m
	}
	if m, ok := h.prep.MinutesFor(r.Context(), e.Order.ID); ok {
		c.PrepMinutes = &m
	}
	return c
}
