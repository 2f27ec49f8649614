package comanda

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/appetiteclub/comanda/internal/board"
	"github.com/appetiteclub/comanda/internal/courier"
	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/prefs"
	"github.com/appetiteclub/comanda/internal/preptimer"
	"github.com/appetiteclub/comanda/internal/submission"
	"github.com/appetiteclub/comanda/internal/tracking"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

// HandlerDeps groups the surfaces served. A nil dependency leaves its routes
// unregistered.
type HandlerDeps struct {
	Board    *board.Store
	Prep     *preptimer.Timer
	Tracking *tracking.Hub
	Courier  *courier.Flow
	Pipeline *submission.Pipeline
	Prefs    *prefs.Prefs
	Metrics  *metrics.Registry
}

type Handler struct {
	board    *board.Store
	prep     *preptimer.Timer
	tracking *tracking.Hub
	courier  *courier.Flow
	pipeline *submission.Pipeline
	prefs    *prefs.Prefs
	metrics  *metrics.Registry
	logger   aqm.Logger
	config   *aqm.Config
	tlm      *telemetry.HTTP
	now      func() time.Time
}

func NewHandler(deps HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		board:    deps.Board,
		prep:     deps.Prep,
		tracking: deps.Tracking,
		courier:  deps.Courier,
		pipeline: deps.Pipeline,
		prefs:    deps.Prefs,
		metrics:  deps.Metrics,
		logger:   logger,
		config:   config,
		tlm:      telemetry.NewHTTP(),
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	if h.board != nil {
		r.Route("/board", func(r chi.Router) {
			r.Get("/", h.GetBoard)
			r.Post("/reload", h.ReloadBoard)
			r.Post("/move", h.MoveOrder)
			r.Post("/reorder", h.ReorderColumn)
			r.Post("/orders/{key}/advance", h.AdvanceOrder)
			r.Get("/orders/{key}/prep", h.GetPrep)
		})
	}

	if h.pipeline != nil {
		r.Post("/checkout", h.Checkout)
	}

	if h.tracking != nil {
		r.Route("/tracking/{id}", func(r chi.Router) {
			r.Get("/", h.GetTracking)
			r.Method(http.MethodGet, "/events", tracking.NewSSEHandler(h.tracking, h.logger))
			r.Post("/confirm", h.ConfirmDelivery)
		})
	}

	if h.courier != nil {
		r.Route("/courier", func(r chi.Router) {
			r.Get("/available", h.ListAvailable)
			r.Post("/available/refresh", h.RefreshAvailable)
			r.Get("/active", h.ListActive)
			r.Get("/history", h.ListHistory)
			r.Post("/orders/{id}/accept", h.AcceptDelivery)
			r.Post("/orders/{id}/start", h.StartDelivery)
			r.Post("/orders/{id}/cancel", h.CancelDelivery)
			r.Post("/orders/{id}/finish", h.FinishDelivery)
		})
	}

	if h.prefs != nil {
		r.Route("/prefs", func(r chi.Router) {
			r.Get("/favorites", h.ListFavorites)
			r.Post("/favorites", h.ToggleFavorite)
			r.Get("/favorites/{id}", h.GetFavorite)
			r.Delete("/favorites/{id}", h.RemoveFavorite)
			r.Get("/searches", h.ListSearches)
			r.Post("/searches", h.PushSearch)
		})
	}

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

// decodeBody reads an optional JSON body. It responds and returns false on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, out); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}
