// Package metrics exposes the protocol's Prometheus collectors, grounded
// on the teacher's internal/app/metrics registry-and-Handler pattern.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the protocol-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ticketsSold = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "tickets",
			Name:      "sold_total",
			Help:      "Total number of tickets sold.",
		},
		[]string{"game"},
	)

	ticketValueSold = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "tickets",
			Name:      "value_sold_micro_units_total",
			Help:      "Total micro-unit value of tickets sold.",
		},
		[]string{"game"},
	)

	drawsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "draws",
			Name:      "finalized_total",
			Help:      "Total number of draws finalized.",
		},
		[]string{"game"},
	)

	rolldownActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "draws",
			Name:      "rolldown_activations_total",
			Help:      "Total number of draws that entered rolldown mode.",
		},
		[]string{"game"},
	)

	reserveShortfalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "settlement",
			Name:      "reserve_shortfalls_total",
			Help:      "Total number of draws where reserve+insurance could not cover fixed payouts.",
		},
		[]string{"game"},
	)

	claimPayouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "settlement",
			Name:      "claim_payouts_micro_units_total",
			Help:      "Total micro-unit value of claims paid out.",
		},
		[]string{"game", "tier"},
	)

	jackpotBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lottery",
			Subsystem: "pools",
			Name:      "jackpot_balance_micro_units",
			Help:      "Current jackpot pool balance.",
		},
		[]string{"game"},
	)

	drawCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lottery",
			Subsystem: "draws",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of a commit->finalize draw cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"game"},
	)
)

func init() {
	Registry.MustRegister(
		ticketsSold,
		ticketValueSold,
		drawsFinalized,
		rolldownActivations,
		reserveShortfalls,
		claimPayouts,
		jackpotBalance,
		drawCycleDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTicketSale increments ticket-sale counters for one purchase.
func RecordTicketSale(game string, ticketCount uint64, valueMicroUnits uint64) {
	ticketsSold.WithLabelValues(game).Add(float64(ticketCount))
	ticketValueSold.WithLabelValues(game).Add(float64(valueMicroUnits))
}

// RecordDrawFinalized increments the draws-finalized counter and,
// conditionally, the rolldown-activation counter.
func RecordDrawFinalized(game string, rolldownActive bool) {
	drawsFinalized.WithLabelValues(game).Inc()
	if rolldownActive {
		rolldownActivations.WithLabelValues(game).Inc()
	}
}

// RecordReserveShortfall increments the reserve-shortfall counter.
func RecordReserveShortfall(game string) {
	reserveShortfalls.WithLabelValues(game).Inc()
}

// RecordClaim records a successful claim payout.
func RecordClaim(game string, tier int, amountMicroUnits uint64) {
	claimPayouts.WithLabelValues(game, tierLabel(tier)).Add(float64(amountMicroUnits))
}

// SetJackpotBalance updates the jackpot gauge.
func SetJackpotBalance(game string, balance uint64) {
	jackpotBalance.WithLabelValues(game).Set(float64(balance))
}

// ObserveDrawCycleDuration records one commit->finalize cycle's wall time.
func ObserveDrawCycleDuration(game string, seconds float64) {
	drawCycleDuration.WithLabelValues(game).Observe(seconds)
}

func tierLabel(tier int) string {
	switch {
	case tier <= 0:
		return "none"
	default:
		digits := [...]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
		if tier < len(digits) {
			return "match" + digits[tier]
		}
		return "match_overflow"
	}
}
