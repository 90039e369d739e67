// internal/metrics/prometheus.go
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"missionctl/internal/database"
)

// Prometheus metrics
var (
	ActivitiesLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missionctl_activities_logged_total",
			Help: "Total activities written to the feed",
		},
		[]string{"type", "status"},
	)

	HealthRowsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "missionctl_health_rows_ingested_total",
			Help: "Total health check rows appended",
		},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "missionctl_search_queries_total",
			Help: "Total global search queries served",
		},
	)

	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missionctl_database_operations_total",
			Help: "Total database operations performed",
		},
		[]string{"operation", "status"},
	)

	TableRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "missionctl_table_records",
			Help: "Current number of records per table",
		},
		[]string{"table"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "missionctl_websocket_connections_active",
			Help: "Number of active live-query connections",
		},
	)
)

type Collector struct {
	store database.Store
}

func NewCollector(store database.Store) *Collector {
	return &Collector{store: store}
}

func (c *Collector) RecordActivity(activityType, status string) {
	ActivitiesLogged.WithLabelValues(activityType, status).Inc()
}

func (c *Collector) RecordHealthIngest(rows int) {
	HealthRowsIngested.Add(float64(rows))
}

func (c *Collector) RecordSearch() {
	SearchQueries.Inc()
}

func (c *Collector) RecordStoreOp(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperations.WithLabelValues(operation, status).Inc()
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}

// UpdateSystemMetrics refreshes the per-table record gauges.
func (c *Collector) UpdateSystemMetrics(ctx context.Context) error {
	stats, err := c.store.GetDatabaseStats(ctx)
	if err != nil {
		DatabaseOperations.WithLabelValues("database_stats", "error").Inc()
		return err
	}
	DatabaseOperations.WithLabelValues("database_stats", "success").Inc()

	TableRecords.WithLabelValues("activities").Set(float64(stats.ActivityCount))
	TableRecords.WithLabelValues("scheduled_tasks").Set(float64(stats.TaskCount))
	TableRecords.WithLabelValues("search_index").Set(float64(stats.SearchIndexCount))
	TableRecords.WithLabelValues("memories").Set(float64(stats.MemoryCount))
	TableRecords.WithLabelValues("health_checks").Set(float64(stats.HealthCheckCount))

	return nil
}
