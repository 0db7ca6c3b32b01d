// Package metrics exposes Prometheus collectors for upload, search and provider events.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider operation labels.
const (
	OpCreateStore = "create_store"
	OpUpload      = "upload"
	OpQuery       = "query"
)

// Recorder records domain events. A nil *Recorder is valid and records nothing.
type Recorder struct {
	uploads       *prometheus.CounterVec
	uploadedFiles prometheus.Counter
	searches      *prometheus.CounterVec
	providerCalls *prometheus.HistogramVec
	storesCreated prometheus.Counter
}

// New builds a Recorder and registers its collectors on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_uploads_total",
				Help: "Upload batches processed, by outcome.",
			},
			[]string{"outcome"},
		),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsearch_uploaded_files_total",
			Help: "Files committed to a project store.",
		}),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_searches_total",
				Help: "Searches dispatched, by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		providerCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_provider_call_duration_seconds",
				Help:    "Latency of calls to the file-search provider.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"op", "outcome"},
		),
		storesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsearch_stores_created_total",
			Help: "Remote file-search stores created.",
		}),
	}

	for _, c := range []prometheus.Collector{r.uploads, r.uploadedFiles, r.searches, r.providerCalls, r.storesCreated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Upload counts one batch with the given outcome and the number of files it committed.
func (r *Recorder) Upload(outcome string, committed int) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(outcome).Inc()
	if committed > 0 {
		r.uploadedFiles.Add(float64(committed))
	}
}

func (r *Recorder) Search(mode, outcome string) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(mode, outcome).Inc()
}

// ProviderCall observes the latency of one provider operation.
func (r *Recorder) ProviderCall(op string, took time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.providerCalls.WithLabelValues(op, outcome).Observe(took.Seconds())
}

// StoreCreated is shaped to plug into registry.WithCreateHook.
func (r *Recorder) StoreCreated(_ string, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.ProviderCall(OpCreateStore, took, err)
	if err == nil {
		r.storesCreated.Inc()
	}
}
