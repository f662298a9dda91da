package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total pending orders created",
		},
	)

	callbacksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment callbacks processed by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total tickets issued for paid orders",
		},
	)

	capacityAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capacity_anomalies_total",
			Help: "Paid orders that could not be issued because capacity was exhausted",
		},
	)

	notificationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Ticket delivery jobs by status",
		},
		[]string{"status"},
	)

	gatewayPushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_push_duration_seconds",
			Help:    "Duration of payment push initiation calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

func RecordOrderCreated()              { ordersCreated.Inc() }
func RecordCallback(outcome string)    { callbacksProcessed.WithLabelValues(outcome).Inc() }
func RecordTicketsIssued(n int)        { ticketsIssued.Add(float64(n)) }
func RecordCapacityAnomaly()           { capacityAnomalies.Inc() }
func RecordNotification(status string) { notificationJobs.WithLabelValues(status).Inc() }
func ObservePushDuration(d time.Duration) {
	gatewayPushDuration.Observe(d.Seconds())
}

// CollectSystemMetrics refreshes process-level gauges until ctx is done.
func CollectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			goroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}
