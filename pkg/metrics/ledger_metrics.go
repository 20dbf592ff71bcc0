package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CreditsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcraft_credits_consumed_total",
			Help: "Credits debited from business balances by action",
		},
		[]string{"action"},
	)

	CreditsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcraft_credits_added_total",
			Help: "Credits added to business balances by transaction type",
		},
		[]string{"type"},
	)

	InsufficientCreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcraft_insufficient_credits_total",
			Help: "Debits rejected because the balance could not cover them",
		},
		[]string{"action"},
	)

	LedgerConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelcraft_ledger_conflicts_total",
			Help: "Ledger transactions aborted by a concurrent write and retried",
		},
	)

	CampaignTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcraft_campaign_transitions_total",
			Help: "Campaign status transitions",
		},
		[]string{"from", "to"},
	)
)

func RecordConsumed(action string, credits int64) {
	CreditsConsumedTotal.WithLabelValues(action).Add(float64(credits))
}

func RecordAdded(txnType string, credits int64) {
	CreditsAddedTotal.WithLabelValues(txnType).Add(float64(credits))
}

func RecordInsufficient(action string) {
	InsufficientCreditsTotal.WithLabelValues(action).Inc()
}

func RecordConflict() {
	LedgerConflictsTotal.Inc()
}

func RecordTransition(from, to string) {
	CampaignTransitionsTotal.WithLabelValues(from, to).Inc()
}
