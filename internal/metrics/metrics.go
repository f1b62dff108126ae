package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
)

const namespace = "cryptoearn"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "claims_total",
			Help:      "Reward claims by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	claimedAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "claimed_amount_total",
			Help:      "Sum of credited reward amounts by method.",
		},
		[]string{"method"},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawals",
			Name:      "requests_total",
			Help:      "Withdrawal requests by outcome.",
		},
		[]string{"outcome"},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawals",
			Name:      "settlements_total",
			Help:      "Withdrawal settlements by final status.",
		},
		[]string{"status"},
	)

	pendingWithdrawals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "withdrawals",
			Name:      "pending",
			Help:      "Withdrawals waiting for settlement.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		claims,
		claimedAmount,
		withdrawals,
		settlements,
		pendingWithdrawals,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// ObserveClaim records a claim attempt. amount is only counted on success.
func ObserveClaim(method, outcome string, amount float64) {
	claims.WithLabelValues(method, outcome).Inc()
	if outcome == "success" {
		claimedAmount.WithLabelValues(method).Add(amount)
	}
}

// ObserveWithdrawal records a withdrawal request outcome.
func ObserveWithdrawal(outcome string) {
	withdrawals.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		pendingWithdrawals.Inc()
	}
}

// ObserveSettlement records a pending withdrawal reaching a terminal status.
func ObserveSettlement(status string) {
	settlements.WithLabelValues(status).Inc()
	pendingWithdrawals.Dec()
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = apperr.HTTPStatus(apperr.KindOf(err))
			}
		}
		path := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// ObservePendingRestored accounts for pending withdrawals recovered at startup.
func ObservePendingRestored(n int) {
	pendingWithdrawals.Add(float64(n))
}
