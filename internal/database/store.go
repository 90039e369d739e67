// internal/database/store.go
package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for database operations
type Store interface {
	// Activity operations
	LogActivity(ctx context.Context, activity *Activity) (string, error)
	ListActivities(ctx context.Context, q ActivityQuery) (*ActivityPage, error)
	ListActivitiesPaginated(ctx context.Context, activityType string, opts PaginationOpts) (*PaginatedActivities, error)
	GetActivityStats(ctx context.Context) (*ActivityStats, error)

	// Scheduled task operations
	UpsertScheduledTask(ctx context.Context, task *ScheduledTask) (string, error)
	GetScheduledTask(ctx context.Context, name string) (*ScheduledTask, error)
	ListScheduledTasks(ctx context.Context) ([]ScheduledTask, error)
	GetWeeklySchedule(ctx context.Context, weekStart int64) ([]ScheduledTask, error)

	// Search operations
	IndexContent(ctx context.Context, entry *SearchIndexEntry) (string, error)
	UpsertMemory(ctx context.Context, memory *Memory) (string, error)
	GlobalSearch(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// Health check operations
	IngestHealthData(ctx context.Context, batch HealthBatch) (int, error)
	UpdateHealthCheck(ctx context.Context, check *HealthCheck) (string, error)
	ListHealthChecks(ctx context.Context, limit int) (*HealthList, error)
	GetHealthStats(ctx context.Context) (*HealthStats, error)
	GetRecentErrors(ctx context.Context, limit int) ([]HealthCheck, error)

	// Maintenance
	GetDatabaseStats(ctx context.Context) (*DatabaseStats, error)
	Compact(ctx context.Context) error

	// Close the database connection
	Close() error
}
