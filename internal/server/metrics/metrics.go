// Package metrics registers the network-host process's Prometheus
// collectors and installs the /metrics scrape endpoint on the ops
// container: package-level collectors, registered once at import time.
package metrics

import (
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PoolUtilization reports, per network, how many of its fixed ips are
	// currently allocated versus reserved-or-free.
	PoolUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nethost",
		Subsystem: "pool",
		Name:      "fixed_ip_allocated",
		Help:      "Number of fixed ips currently allocated to an instance, by network.",
	}, []string{"network"})

	// MACRetryTotal counts VIF MAC-generation collisions that required a
	// retry. A sustained non-zero rate signals pool exhaustion pressure on
	// the MAC address space, which is vast, or a broken RNG.
	MACRetryTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nethost",
		Subsystem: "vif",
		Name:      "mac_retry_total",
		Help:      "Total number of VIF MAC generation collisions that required a retry.",
	})

	// FanOutDuration times the multi-host fixed-ip fan-out barrier, labeled
	// by outcome so a slow or failing remote host shows up in p99s.
	FanOutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nethost",
		Subsystem: "rpc",
		Name:      "fanout_duration_seconds",
		Help:      "Duration of the multi-host fixed-ip fan-out barrier.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// FanOutErrorsTotal counts fan-out calls that failed to complete for
	// every target network.
	FanOutErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nethost",
		Subsystem: "rpc",
		Name:      "fanout_errors_total",
		Help:      "Total number of fixed-ip fan-out calls that returned a partial-allocation error.",
	})

	// SweepReclaimedTotal counts fixed ips the stale-lease sweeper has
	// disassociated past the grace timeout.
	SweepReclaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nethost",
		Subsystem: "sweeper",
		Name:      "reclaimed_total",
		Help:      "Total number of fixed ips disassociated by the stale-lease sweeper.",
	})
)

func init() {
	prometheus.MustRegister(PoolUtilization, MACRetryTotal, FanOutDuration, FanOutErrorsTotal, SweepReclaimedTotal)
}

// RecordMACRetry is called once per MAC-generation collision.
func RecordMACRetry() {
	MACRetryTotal.Inc()
}

// RecordFanOut is called once per completed Allocate fan-out call.
func RecordFanOut(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		FanOutErrorsTotal.Inc()
	}
	FanOutDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordSweepReclaimed is called once per sweeper pass with the count of
// addresses it disassociated.
func RecordSweepReclaimed(n int) {
	if n > 0 {
		SweepReclaimedTotal.Add(float64(n))
	}
}

// SetPoolUtilization records the current allocated count for network.
func SetPoolUtilization(network string, allocated int) {
	PoolUtilization.WithLabelValues(network).Set(float64(allocated))
}

// Install registers the /metrics scrape route on container.
func Install(container *restful.Container) {
	container.ServeMux.Handle("/metrics", promhttp.Handler())
}
