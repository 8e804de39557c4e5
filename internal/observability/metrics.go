package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	migrationsTotal   *prometheus.CounterVec
	migrationDuration *prometheus.HistogramVec
	commentRowsTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used for migration observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		migrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_migrations_total",
			Help: "Total number of migrations executed, by direction and status.",
		}, []string{"direction", "status"})

		migrationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strata_migration_duration_seconds",
			Help:    "Duration distribution for migration runs.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"direction"})

		commentRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_comment_rows_total",
			Help: "Comment rows processed by the comment migration, by direction and outcome.",
		}, []string{"direction", "outcome"})

		prometheus.MustRegister(migrationsTotal, migrationDuration, commentRowsTotal)
	})
}

// Migrations exposes the counter for completed migration runs.
func Migrations() *prometheus.CounterVec {
	RegisterMetrics()
	return migrationsTotal
}

// MigrationDuration exposes the duration histogram for migration runs.
func MigrationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return migrationDuration
}

// CommentRows exposes the counter for individual comment rows handled.
func CommentRows() *prometheus.CounterVec {
	RegisterMetrics()
	return commentRowsTotal
}
