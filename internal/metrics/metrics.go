package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Portal metrics
	// ============================================
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_deposits_total",
			Help: "Total number of L1 deposits accepted by the portal",
		},
		[]string{"variant"},
	)

	DepositsDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_deposits_denied_total",
			Help: "Total number of deposits rejected",
		},
		[]string{"variant", "reason"},
	)

	WithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_withdrawals_total",
		Help: "Total number of finalized L1 withdrawals",
	})

	WithdrawalsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_withdrawals_failed_total",
			Help: "Total number of failed withdrawal attempts",
		},
		[]string{"reason"},
	)

	// ============================================
	// L2 claim metrics
	// ============================================
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_claims_total",
			Help: "Total number of successful L2 claims",
		},
		[]string{"variant"},
	)

	ClaimsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_claims_failed_total",
			Help: "Total number of failed L2 claims",
		},
		[]string{"variant"},
	)

	// ============================================
	// Flow metrics
	// ============================================
	FlowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_flows_started_total",
			Help: "Total number of bridge flows started",
		},
		[]string{"variant"},
	)

	FlowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_flows_completed_total",
			Help: "Total number of bridge flows completed end to end",
		},
		[]string{"variant"},
	)

	FlowsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_flows_failed_total",
			Help: "Total number of bridge flows that stopped at a failure",
		},
		[]string{"variant", "stage"},
	)

	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_flow_duration_seconds",
			Help:    "End-to-end bridge flow duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	ConsumabilityWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_consumability_wait_seconds",
		Help:    "Time between deposit and the message becoming consumable",
		Buckets: prometheus.DefBuckets,
	})

	// ============================================
	// Infrastructure metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	OracleRequestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_oracle_requests_failed_total",
		Help: "Total number of failed attestation oracle requests",
	})

	L2BlockHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_l2_block_height",
		Help: "Latest L2 block produced by the devnet rollup node",
	})
)
