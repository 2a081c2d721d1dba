// Package metrics defines the prometheus instrumentation for the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JMAP method metrics
var (
	MethodCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_jmap_method_calls_total",
			Help: "Total number of JMAP method calls processed",
		},
		[]string{"method", "status"},
	)

	MethodDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lark_jmap_method_duration_seconds",
			Help:    "Duration of JMAP method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Mailbox mutation metrics
var (
	MailboxMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_mailbox_mutations_total",
			Help: "Total number of applied mailbox mutations",
		},
		[]string{"outcome"},
	)
)

// LMTP metrics
var (
	LMTPConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lark_lmtp_connections_total",
			Help: "Total number of accepted LMTP connections",
		},
	)
)

// Filter and delivery metrics
var (
	FilterEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_filter_evaluations_total",
			Help: "Total number of filter rule evaluations on inbound mail",
		},
		[]string{"result"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_deliveries_total",
			Help: "Total number of inbound message deliveries",
		},
		[]string{"status"},
	)

	VacationRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lark_vacation_replies_total",
			Help: "Total number of vacation auto-replies",
		},
		[]string{"status"},
	)
)
