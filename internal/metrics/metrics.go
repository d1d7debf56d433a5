// Package metrics exposes the Prometheus instrumentation of the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the application metrics. One instance is created at
// startup and shared through the router dependencies.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	signIns      *prometheus.CounterVec
	roleLookups  *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	sweptRows    prometheus.Counter
	sweptObjects prometheus.Counter
}

// NewCollector creates and registers the application metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facsite_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		signIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facsite_sign_ins_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		roleLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facsite_role_lookups_total",
			Help: "Administrator role lookups by result.",
		}, []string{"result"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facsite_uploads_total",
			Help: "File uploads by bucket and outcome.",
		}, []string{"bucket", "outcome"}),
		sweptRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "facsite_swept_sessions_total",
			Help: "Expired sessions removed by the sweeper.",
		}),
		sweptObjects: factory.NewCounter(prometheus.CounterOpts{
			Name: "facsite_swept_objects_total",
			Help: "Orphaned storage objects removed by the sweeper.",
		}),
	}
}

// RecordHTTPRequest counts one handled request.
func (c *Collector) RecordHTTPRequest(method, route string, status int) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// RecordSignIn counts one sign-in attempt. outcome is "success" or "failure".
func (c *Collector) RecordSignIn(outcome string) {
	c.signIns.WithLabelValues(outcome).Inc()
}

// RecordRoleLookup counts one role resolution result.
func (c *Collector) RecordRoleLookup(isAdmin bool) {
	result := "non_admin"
	if isAdmin {
		result = "admin"
	}
	c.roleLookups.WithLabelValues(result).Inc()
}

// RecordUpload counts one file upload attempt.
func (c *Collector) RecordUpload(bucket string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.uploads.WithLabelValues(bucket, outcome).Inc()
}

// RecordSweep counts the removals of one sweeper pass.
func (c *Collector) RecordSweep(sessions, objects int) {
	c.sweptRows.Add(float64(sessions))
	c.sweptObjects.Add(float64(objects))
}

// Handler returns the scrape endpoint handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
