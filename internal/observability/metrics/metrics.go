// Package metrics provides Prometheus instrumentation for the deployer.
//
// A deploy is a short-lived process, so metrics are collected in a private
// registry and pushed to a Pushgateway once the run finishes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enabled  bool
	jobName  string
	registry *prometheus.Registry

	// Deployment metrics
	deploymentsTotal   *prometheus.CounterVec
	deployDuration     *prometheus.HistogramVec
	confirmationWait   *prometheus.HistogramVec
	journalErrorsTotal *prometheus.CounterVec

	// JSON-RPC transport metrics
	rpcRequestsTotal *prometheus.CounterVec
	rpcDuration      *prometheus.HistogramVec
)

// Init initializes the metrics system. Calling it again starts from a fresh
// registry.
func Init(enabledFlag bool, job string) {
	enabled = enabledFlag
	jobName = job

	if !enabled {
		registry = nil
		return
	}

	registry = prometheus.NewRegistry()
	factory := promauto.With(registry)

	// Deployment outcome counter
	deploymentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_deployments_total",
			Help: "Total number of deployment attempts by outcome",
		},
		[]string{"network", "result"},
	)

	// End to end deploy duration
	deployDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deployer_deploy_duration_seconds",
			Help:    "Time from connecting to the endpoint until the outcome is known",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"network"},
	)

	// Receipt wait
	confirmationWait = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deployer_confirmation_wait_seconds",
			Help:    "Time spent waiting for the creation transaction receipt",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"network"},
	)

	// Journal failures never fail a deploy, so they are counted instead
	journalErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_journal_errors_total",
			Help: "Total number of failed attempt journal writes",
		},
		[]string{"op"},
	)

	rpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_rpc_requests_total",
			Help: "Total number of JSON-RPC HTTP requests",
		},
		[]string{"method", "status"},
	)

	rpcDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deployer_rpc_request_duration_seconds",
			Help:    "JSON-RPC HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
}

// Registry returns the gatherer holding all deployer metrics, or nil when
// metrics are disabled.
func Registry() prometheus.Gatherer {
	if registry == nil {
		return nil
	}
	return registry
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// Job returns the Pushgateway job name.
func Job() string {
	return jobName
}
