package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service collectors. All recording methods are safe on a
// nil *Registry, so components run without metrics in tests.
type Registry struct {
	reg *prometheus.Registry

	boardMoves       *prometheus.CounterVec
	boardResyncs     prometheus.Counter
	trackingUpdates  *prometheus.CounterVec
	trackingPollErrs prometheus.Counter
	trackingSessions prometheus.Gauge
	submissions      *prometheus.CounterVec
	courierFinishes  *prometheus.CounterVec
	prepMinutes      prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	boardMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_board_moves_total",
		Help: "Kitchen board moves by result.",
	}, []string{"result"})
	boardResyncs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comanda_board_resyncs_total",
		Help: "Full board reloads triggered by a failed status update.",
	})
	trackingUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_tracking_updates_total",
		Help: "Tracking payloads by source and outcome.",
	}, []string{"source", "outcome"})
	trackingPollErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comanda_tracking_poll_errors_total",
	})
	trackingSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comanda_tracking_sessions",
	})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_submissions_total",
		Help: "Order submissions by outcome.",
	}, []string{"outcome"})
	courierFinishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_courier_finishes_total",
	}, []string{"result"})
	prepMinutes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "comanda_prep_minutes",
		Help:    "Locally observed preparation durations.",
		Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90},
	})

	r.MustRegister(boardMoves, boardResyncs, trackingUpdates, trackingPollErrs,
		trackingSessions, submissions, courierFinishes, prepMinutes)

	return &Registry{
		reg:              r,
		boardMoves:       boardMoves,
		boardResyncs:     boardResyncs,
		trackingUpdates:  trackingUpdates,
		trackingPollErrs: trackingPollErrs,
		trackingSessions: trackingSessions,
		submissions:      submissions,
		courierFinishes:  courierFinishes,
		prepMinutes:      prepMinutes,
	}
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) BoardMove(result string) {
	if r == nil {
		return
	}
	r.boardMoves.WithLabelValues(result).Inc()
}

func (r *Registry) BoardResync() {
	if r == nil {
		return
	}
	r.boardResyncs.Inc()
}

func (r *Registry) TrackingUpdate(source, outcome string) {
	if r == nil {
		return
	}
	r.trackingUpdates.WithLabelValues(source, outcome).Inc()
}

func (r *Registry) TrackingPollError() {
	if r == nil {
		return
	}
	r.trackingPollErrs.Inc()
}

func (r *Registry) SessionStarted() {
	if r == nil {
		return
	}
	r.trackingSessions.Inc()
}

func (r *Registry) SessionStopped() {
	if r == nil {
		return
	}
	r.trackingSessions.Dec()
}

func (r *Registry) Submission(outcome string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(outcome).Inc()
}

func (r *Registry) CourierFinish(result string) {
	if r == nil {
		return
	}
	r.courierFinishes.WithLabelValues(result).Inc()
}

func (r *Registry) PrepObserved(minutes int) {
	if r == nil {
		return
	}
	r.prepMinutes.Observe(float64(minutes))
}
