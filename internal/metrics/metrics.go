// Package metrics holds the prometheus collectors of the ledger. A nil *Recorder is valid
// and records nothing, so engines built in tests need no registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "hyip_ledger"

type Recorder struct {
	registry *prometheus.Registry

	ledgerEntries   *prometheus.CounterVec
	busyRetries     prometheus.Counter
	accrualPayouts  prometheus.Counter
	accrualAmount   prometheus.Counter
	reconcileFails  prometheus.Counter
	triggerRuns     *prometheus.CounterVec
	triggerDuration *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries written, by category and direction.",
		}, []string{"category", "direction"}),
		busyRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "busy_retries_total",
			Help:      "Units of work retried because a wallet row was locked.",
		}),
		accrualPayouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "payouts_total",
			Help:      "Interest payouts credited by the accrual engine.",
		}),
		accrualAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accrual",
			Name:      "payout_amount_total",
			Help:      "Sum of interest credited by the accrual engine.",
		}),
		reconcileFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "failures_total",
			Help:      "Wallets whose balance does not match their ledger.",
		}),
		triggerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "runs_total",
			Help:      "Periodic job runs, by job and outcome.",
		}, []string{"job", "success"}),
		triggerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "run_duration_seconds",
			Help:      "Duration of periodic job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"job"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		r.ledgerEntries,
		r.busyRetries,
		r.accrualPayouts,
		r.accrualAmount,
		r.reconcileFails,
		r.triggerRuns,
		r.triggerDuration,
		r.httpRequests,
		r.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) LedgerEntry(category, direction string) {
	if r == nil {
		return
	}
	r.ledgerEntries.WithLabelValues(category, direction).Inc()
}

func (r *Recorder) BusyRetry() {
	if r == nil {
		return
	}
	r.busyRetries.Inc()
}

func (r *Recorder) AccrualPayout(amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.accrualPayouts.Inc()
	r.accrualAmount.Add(amount.InexactFloat64())
}

func (r *Recorder) ReconcileFailure() {
	if r == nil {
		return
	}
	r.reconcileFails.Inc()
}

func (r *Recorder) TriggerRun(job string, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.triggerRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
	r.triggerDuration.WithLabelValues(job).Observe(took.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
