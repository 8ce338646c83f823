package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type TrustMetrics struct {
	opsTotal        *prometheus.CounterVec
	opFailures      *prometheus.CounterVec
	trackedDeposit  prometheus.Gauge
	registeredUsers prometheus.Gauge
	profitExtracted prometheus.Counter
}

var (
	trustOnce     sync.Once
	trustRegistry *TrustMetrics
)

func Trust() *TrustMetrics {
	trustOnce.Do(func() {
		trustRegistry = &TrustMetrics{
			opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trust_operations_total",
				Help: "Count of completed registry operations by method.",
			}, []string{"method"}),
			opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trust_operation_failures_total",
				Help: "Count of rejected registry operations by method.",
			}, []string{"method"}),
			trackedDeposit: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "trust_tracked_deposit_tokens",
				Help: "Aggregate of user deposits and refund credits held by the registry.",
			}),
			registeredUsers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "trust_registered_users",
				Help: "Number of user records currently stored.",
			}),
			profitExtracted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "trust_profit_extracted_total",
				Help: "Cumulative tokens withdrawn by the operator.",
			}),
		}
		prometheus.MustRegister(
			trustRegistry.opsTotal,
			trustRegistry.opFailures,
			trustRegistry.trackedDeposit,
			trustRegistry.registeredUsers,
			trustRegistry.profitExtracted,
		)
	})
	return trustRegistry
}

func (m *TrustMetrics) ObserveOperation(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.opsTotal.WithLabelValues(method).Inc()
}

func (m *TrustMetrics) ObserveFailure(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.opFailures.WithLabelValues(method).Inc()
}

func (m *TrustMetrics) SetTrackedDeposit(amount float64) {
	if m == nil {
		return
	}
	m.trackedDeposit.Set(amount)
}

func (m *TrustMetrics) SetRegisteredUsers(count int) {
	if m == nil {
		return
	}
	m.registeredUsers.Set(float64(count))
}

func (m *TrustMetrics) AddProfitExtracted(amount float64) {
	if m == nil {
		return
	}
	m.profitExtracted.Add(amount)
}
