// Package metrics collects Prometheus metrics for the auth flow, mail
// dispatch and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder is what services and middleware depend on.
type Recorder interface {
	RecordAuthEvent(event, outcome string)
	RecordMail(kind string, ok bool)
	RecordHTTP(method, route string, status int, duration time.Duration)
}

type Collector struct {
	authEvents   *prometheus.CounterVec
	mails        *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtodo_auth_events_total",
			Help: "Auth flow operations by event and outcome.",
		}, []string{"event", "outcome"}),
		mails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtodo_mail_dispatch_total",
			Help: "Outbound mails by kind and outcome.",
		}, []string{"kind", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtodo_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mtodo_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(c.authEvents, c.mails, c.httpRequests, c.httpLatency)
	return c
}

func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

func (c *Collector) RecordMail(kind string, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	c.mails.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAuthEvent(string, string) {}
func (Nop) RecordMail(string, bool) {}
func (Nop) RecordHTTP(string, string, int, time.Duration) {}
