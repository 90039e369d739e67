// internal/database/models.go
package database

// Activity is one action the assistant performed. Rows are append-only and
// totally ordered by Timestamp.
type Activity struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	SessionKey  string         `json:"session_key,omitempty"`
	Channel     string         `json:"channel,omitempty"`
	Status      string         `json:"status"`
	DurationMs  *int64         `json:"duration_ms,omitempty"`
	TokenCount  *int64         `json:"token_count,omitempty"`
}

// Schedule is a tagged union: kind "cron" carries Expr, kind "every"
// carries EveryMs.
type Schedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"every_ms,omitempty"`
}

// ScheduledTask identity is Name; upserts replace the whole record.
type ScheduledTask struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Schedule    Schedule `json:"schedule"`
	NextRunAt   int64    `json:"next_run_at"`
	LastRunAt   *int64   `json:"last_run_at,omitempty"`
	LastStatus  string   `json:"last_status,omitempty"`
	Enabled     bool     `json:"enabled"`
	Channel     string   `json:"channel,omitempty"`
	Model       string   `json:"model,omitempty"`
	UpdatedAt   int64    `json:"updated_at"`
}

// SearchIndexEntry is a write-once blob of indexed content.
type SearchIndexEntry struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	ContentType string         `json:"content_type"`
	SourcePath  string         `json:"source_path"`
	Title       string         `json:"title,omitempty"`
	Timestamp   int64          `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Memory identity is Path; upserts replace the whole record.
type Memory struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Content      string `json:"content"`
	LastModified int64  `json:"last_modified"`
	Type         string `json:"type"`
}

// Health check statuses.
const (
	HealthSuccess = "success"
	HealthError   = "error"
	HealthStale   = "stale"
	HealthRunning = "running"
	HealthUnknown = "unknown"
	HealthNoLogs  = "no_logs"
)

// HealthCheck is one observation of a cron job. History is append-only; the
// current status of a job is the row with the greatest CollectedAt.
type HealthCheck struct {
	ID           string `json:"id"`
	JobName      string `json:"job_name"`
	Status       string `json:"status"`
	LastRunAt    *int64 `json:"last_run_at,omitempty"`
	ExitCode     *int   `json:"exit_code,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CollectedAt  int64  `json:"collected_at"`
	Hostname     string `json:"hostname"`
}

// ActivityQuery filters ListActivities. Cursor is an exclusive upper bound
// on Timestamp; zero means "from the newest row".
type ActivityQuery struct {
	Type   string
	Cursor int64
	Limit  int
}

// ActivityPage is one page of the feed. NextCursor is set only when more
// rows remain.
type ActivityPage struct {
	Items      []Activity `json:"items"`
	NextCursor *int64     `json:"next_cursor,omitempty"`
}

// PaginationOpts mirrors the string-cursor pagination variant: Cursor is the
// previous page's boundary timestamp, stringified.
type PaginationOpts struct {
	NumItems int    `json:"num_items"`
	Cursor   string `json:"cursor,omitempty"`
}

type PaginatedActivities struct {
	Page           []Activity `json:"page"`
	ContinueCursor string     `json:"continue_cursor,omitempty"`
	IsDone         bool       `json:"is_done"`
}

// ActivityStats is a full-table reduction, recomputed on every call.
type ActivityStats struct {
	TotalActivities int            `json:"total_activities"`
	TodayCount      int            `json:"today_count"`
	ByType          map[string]int `json:"by_type"`
}

// SearchResult tags a matched row with the table it came from:
// "activity", "memory" or "indexed".
type SearchResult struct {
	ResultType  string `json:"result_type"`
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	SourcePath  string `json:"source_path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// HealthList is the dashboard view: latest row per job within the fetched
// window, newest collection timestamp alongside.
type HealthList struct {
	Items       []HealthCheck `json:"items"`
	CollectedAt *int64        `json:"collected_at,omitempty"`
}

// HealthStats partitions the latest row per job into the six status buckets.
// StaleJobs is the union of stale, error and no_logs rows.
type HealthStats struct {
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	Error     int           `json:"error"`
	Stale     int           `json:"stale"`
	Running   int           `json:"running"`
	Unknown   int           `json:"unknown"`
	NoLogs    int           `json:"no_logs"`
	StaleJobs []HealthCheck `json:"stale_jobs"`
}

// HealthReport is one job's entry in an ingestion batch.
type HealthReport struct {
	JobName      string `json:"job_name"`
	Status       string `json:"status"`
	LastRunAt    *int64 `json:"last_run_at,omitempty"`
	ExitCode     *int   `json:"exit_code,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// HealthBatch is what the collector posts: one report per job, sharing a
// collection timestamp and hostname.
type HealthBatch struct {
	Jobs        []HealthReport `json:"jobs"`
	CollectedAt int64          `json:"collected_at"`
	Hostname    string         `json:"hostname"`
}

// DatabaseStats reports per-bucket row counts and file size.
type DatabaseStats struct {
	ActivityCount    int   `json:"activity_count"`
	TaskCount        int   `json:"task_count"`
	SearchIndexCount int   `json:"search_index_count"`
	MemoryCount      int   `json:"memory_count"`
	HealthCheckCount int   `json:"health_check_count"`
	FileSizeBytes    int64 `json:"file_size_bytes"`
}
