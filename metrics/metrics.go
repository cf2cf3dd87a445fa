// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agile_poker"

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Outcome labels for JoinsTotal.
const (
	JoinCreated   = "created"
	JoinReused    = "reused"
	JoinRecovered = "recovered"
	JoinRejected  = "rejected"
)

// Outcome labels for VotesTotal.
const (
	VotePersisted = "persisted"
	VoteSkipped   = "skipped"
)

var (
	requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	joinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_joins_total",
		Help:      "Session join attempts by outcome",
	}, []string{"outcome"})

	votesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_total",
		Help:      "Vote submissions by outcome",
	}, []string{"outcome"})

	realtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_clients",
		Help:      "Connected change-feed clients",
	})
)

func init() {
	prometheus.MustRegister(requestTotal, requestLatency, joinsTotal, votesTotal, realtimeClients)
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	requestTotal.With(labels).Inc()
	requestLatency.With(labels).Observe(duration.Seconds())
}

func Join(outcome string) {
	joinsTotal.WithLabelValues(outcome).Inc()
}

func Vote(outcome string) {
	votesTotal.WithLabelValues(outcome).Inc()
}

func ClientConnected() {
	realtimeClients.Inc()
}

func ClientDisconnected() {
	realtimeClients.Dec()
}
