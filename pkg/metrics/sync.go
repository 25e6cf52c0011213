package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics counts the polling and preview activity of a terminal process.
type SyncMetrics struct {
	pollTicks        *prometheus.CounterVec
	pollErrors       *prometheus.CounterVec
	previewPublishes prometheus.Counter
	previewFailures  prometheus.Counter
	displayClaims    prometheus.Counter
}

// NewSyncMetrics registers terminal sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	pollTicks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_poll_ticks_total",
		Help: "Poll loop ticks, labeled by loop.",
	}, []string{"loop"})
	pollErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_poll_errors_total",
		Help: "Poll loop fetch errors, labeled by loop.",
	}, []string{"loop"})
	previewPublishes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_preview_publishes_total",
		Help: "Preview order upserts flushed to the record store.",
	})
	previewFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_preview_failures_total",
		Help: "Preview publishes that failed and were swallowed.",
	})
	displayClaims := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_display_claims_total",
		Help: "Orders claimed by the customer display.",
	})
	reg.MustRegister(pollTicks, pollErrors, previewPublishes, previewFailures, displayClaims)
	return &SyncMetrics{
		pollTicks:        pollTicks,
		pollErrors:       pollErrors,
		previewPublishes: previewPublishes,
		previewFailures:  previewFailures,
		displayClaims:    displayClaims,
	}
}

// IncPollTick counts one tick of the named poll loop.
func (s *SyncMetrics) IncPollTick(loop string) {
	if s == nil || s.pollTicks == nil {
		return
	}
	s.pollTicks.WithLabelValues(normalizeLabel(loop)).Inc()
}

// IncPollError counts one failed fetch of the named poll loop.
func (s *SyncMetrics) IncPollError(loop string) {
	if s == nil || s.pollErrors == nil {
		return
	}
	s.pollErrors.WithLabelValues(normalizeLabel(loop)).Inc()
}

// IncPreviewPublish counts one flushed preview upsert.
func (s *SyncMetrics) IncPreviewPublish() {
	if s == nil || s.previewPublishes == nil {
		return
	}
	s.previewPublishes.Inc()
}

// IncPreviewFailure counts one swallowed preview failure.
func (s *SyncMetrics) IncPreviewFailure() {
	if s == nil || s.previewFailures == nil {
		return
	}
	s.previewFailures.Inc()
}

// IncDisplayClaim counts one successful display claim.
func (s *SyncMetrics) IncDisplayClaim() {
	if s == nil || s.displayClaims == nil {
		return
	}
	s.displayClaims.Inc()
}
