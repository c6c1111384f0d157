// Package metrics collects catalog and circulation counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements catalog.Recorder and library.Recorder.
type Collector struct {
	searches    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	records     prometheus.Counter
	fetchTime   prometheus.Histogram
	issued      prometheus.Counter
	returned    prometheus.Counter
	provisioned prometheus.Counter
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_catalog_searches_total",
			Help: "Catalog searches issued, by record category and field.",
		}, []string{"category", "field"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_catalog_failures_total",
			Help: "Catalog searches that degraded to an empty result, by reason.",
		}, []string{"reason"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_catalog_records_total",
			Help: "Bibliographic records accepted from catalog responses.",
		}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "library_catalog_fetch_seconds",
			Help:    "Catalog fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_loans_issued_total",
			Help: "Loans issued.",
		}),
		returned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_loans_returned_total",
			Help: "Loans returned.",
		}),
		provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_copies_provisioned_total",
			Help: "Book copies added to the inventory.",
		}),
	}

	reg.MustRegister(
		c.searches,
		c.failures,
		c.records,
		c.fetchTime,
		c.issued,
		c.returned,
		c.provisioned,
	)
	return c
}

func (c *Collector) RecordSearch(category, field string) {
	c.searches.WithLabelValues(category, field).Inc()
}

func (c *Collector) RecordSearchFailure(reason string) {
	c.failures.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordRecords(count int) {
	c.records.Add(float64(count))
}

func (c *Collector) RecordFetchLatency(d time.Duration) {
	c.fetchTime.Observe(d.Seconds())
}

func (c *Collector) RecordLoanIssued()   { c.issued.Inc() }
func (c *Collector) RecordLoanReturned() { c.returned.Inc() }

func (c *Collector) RecordCopiesProvisioned(n int) {
	c.provisioned.Add(float64(n))
}

// Handler serves /metrics from gatherer and a plain /healthz probe.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
