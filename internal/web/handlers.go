// internal/web/handlers.go
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"missionctl/internal/database"
	"missionctl/internal/events"
	"missionctl/internal/schedule"
)

// ActivityRequest is the body for POST /api/activities.
type ActivityRequest struct {
	Type        string         `json:"type" binding:"required"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
	SessionKey  string         `json:"session_key"`
	Channel     string         `json:"channel"`
	Status      string         `json:"status" binding:"required"`
	DurationMs  *int64         `json:"duration_ms"`
	TokenCount  *int64         `json:"token_count"`
}

// TaskRequest is the body for POST /api/tasks. NextRunAt may be omitted, in
// which case it is computed from the schedule spec.
type TaskRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Schedule    database.Schedule `json:"schedule" binding:"required"`
	NextRunAt   int64             `json:"next_run_at"`
	Enabled     bool              `json:"enabled"`
	Channel     string            `json:"channel"`
	Model       string            `json:"model"`
}

// IndexRequest is the body for POST /api/index.
type IndexRequest struct {
	Content     string         `json:"content" binding:"required"`
	ContentType string         `json:"content_type" binding:"required"`
	SourcePath  string         `json:"source_path" binding:"required"`
	Title       string         `json:"title"`
	Metadata    map[string]any `json:"metadata"`
}

// MemoryRequest is the body for PUT /api/memories.
type MemoryRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// HealthCheckRequest is the body for POST /api/health/checks.
type HealthCheckRequest struct {
	JobName      string `json:"job_name" binding:"required"`
	Status       string `json:"status" binding:"required"`
	LastRunAt    *int64 `json:"last_run_at"`
	ExitCode     *int   `json:"exit_code"`
	DurationMs   *int64 `json:"duration_ms"`
	ErrorMessage string `json:"error_message"`
	Hostname     string `json:"hostname"`
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// ACTIVITY HANDLERS

func (s *Server) listActivities(c *gin.Context) {
	q := database.ActivityQuery{
		Type:  c.Query("type"),
		Limit: intQuery(c, "limit", 0),
	}
	if raw := c.Query("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		q.Cursor = cursor
	}

	page, err := s.store.ListActivities(c.Request.Context(), q)
	s.metrics.RecordStoreOp("list_activities", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to list activities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list activities"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) listActivitiesPaginated(c *gin.Context) {
	opts := database.PaginationOpts{
		NumItems: intQuery(c, "num_items", 0),
		Cursor:   c.Query("cursor"),
	}

	result, err := s.store.ListActivitiesPaginated(c.Request.Context(), c.Query("type"), opts)
	s.metrics.RecordStoreOp("list_activities_paginated", err)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) getActivityStats(c *gin.Context) {
	stats, err := s.store.GetActivityStats(c.Request.Context())
	s.metrics.RecordStoreOp("activity_stats", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to compute activity stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute activity stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) logActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity := &database.Activity{
		Timestamp:   time.Now().UnixMilli(),
		Type:        req.Type,
		Description: req.Description,
		Details:     req.Details,
		SessionKey:  req.SessionKey,
		Channel:     req.Channel,
		Status:      req.Status,
		DurationMs:  req.DurationMs,
		TokenCount:  req.TokenCount,
	}

	id, err := s.store.LogActivity(c.Request.Context(), activity)
	s.metrics.RecordStoreOp("log_activity", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to log activity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log activity"})
		return
	}

	s.metrics.RecordActivity(req.Type, req.Status)
	s.broker.Publish(events.Change{Table: events.TableActivities, At: activity.Timestamp})

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// SCHEDULED TASK HANDLERS

func (s *Server) listScheduledTasks(c *gin.Context) {
	tasks, err := s.store.ListScheduledTasks(c.Request.Context())
	s.metrics.RecordStoreOp("list_tasks", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to list tasks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tasks, "count": len(tasks)})
}

func (s *Server) getWeeklySchedule(c *gin.Context) {
	raw := c.Query("start")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start is required (unix milliseconds)"})
		return
	}
	weekStart, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}

	tasks, err := s.store.GetWeeklySchedule(c.Request.Context(), weekStart)
	s.metrics.RecordStoreOp("weekly_schedule", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to get weekly schedule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get weekly schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tasks, "count": len(tasks)})
}

func (s *Server) upsertScheduledTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := schedule.Validate(req.Schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nextRunAt := req.NextRunAt
	if nextRunAt == 0 {
		computed, err := schedule.NextRun(req.Schedule, time.Now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		nextRunAt = computed
	}

	task := &database.ScheduledTask{
		Name:        req.Name,
		Description: req.Description,
		Schedule:    req.Schedule,
		NextRunAt:   nextRunAt,
		Enabled:     req.Enabled,
		Channel:     req.Channel,
		Model:       req.Model,
	}

	id, err := s.store.UpsertScheduledTask(c.Request.Context(), task)
	s.metrics.RecordStoreOp("upsert_task", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to upsert task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upsert task"})
		return
	}

	s.broker.Publish(events.Change{Table: events.TableTasks, At: time.Now().UnixMilli()})

	c.JSON(http.StatusOK, gin.H{"id": id, "next_run_at": nextRunAt})
}

// SEARCH HANDLERS

func (s *Server) globalSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit := intQuery(c, "limit", s.config.Search.DefaultLimit)
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}

	results, err := s.store.GlobalSearch(c.Request.Context(), query, limit)
	s.metrics.RecordStoreOp("global_search", err)
	if err != nil {
		logrus.WithError(err).Error("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	s.metrics.RecordSearch()
	c.JSON(http.StatusOK, gin.H{"data": results, "count": len(results)})
}

func (s *Server) indexContent(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := &database.SearchIndexEntry{
		Content:     req.Content,
		ContentType: req.ContentType,
		SourcePath:  req.SourcePath,
		Title:       req.Title,
		Timestamp:   time.Now().UnixMilli(),
		Metadata:    req.Metadata,
	}

	id, err := s.store.IndexContent(c.Request.Context(), entry)
	s.metrics.RecordStoreOp("index_content", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to index content")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to index content"})
		return
	}

	s.broker.Publish(events.Change{Table: events.TableSearchIndex, At: entry.Timestamp})

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) upsertMemory(c *gin.Context) {
	var req MemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	memory := &database.Memory{
		Path:         req.Path,
		Content:      req.Content,
		LastModified: time.Now().UnixMilli(),
		Type:         req.Type,
	}

	id, err := s.store.UpsertMemory(c.Request.Context(), memory)
	s.metrics.RecordStoreOp("upsert_memory", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to upsert memory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upsert memory"})
		return
	}

	s.broker.Publish(events.Change{Table: events.TableMemories, At: memory.LastModified})

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HEALTH HANDLERS

func (s *Server) listHealthChecks(c *gin.Context) {
	limit := intQuery(c, "limit", s.config.Health.ListLimit)

	list, err := s.store.ListHealthChecks(c.Request.Context(), limit)
	s.metrics.RecordStoreOp("list_health_checks", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to list health checks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list health checks"})
		return
	}

	c.JSON(http.StatusOK, list)
}

func (s *Server) getHealthStats(c *gin.Context) {
	stats, err := s.store.GetHealthStats(c.Request.Context())
	s.metrics.RecordStoreOp("health_stats", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to compute health stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute health stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) getRecentErrors(c *gin.Context) {
	limit := intQuery(c, "limit", s.config.Health.RecentErrorsLimit)

	errorsOut, err := s.store.GetRecentErrors(c.Request.Context(), limit)
	s.metrics.RecordStoreOp("recent_errors", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to get recent errors")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent errors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": errorsOut, "count": len(errorsOut)})
}

func (s *Server) ingestHealthData(c *gin.Context) {
	var batch database.HealthBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := s.store.IngestHealthData(c.Request.Context(), batch)
	s.metrics.RecordStoreOp("ingest_health", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to ingest health data")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.metrics.RecordHealthIngest(count)
	s.broker.Publish(events.Change{Table: events.TableHealthChecks, At: batch.CollectedAt})

	if s.notifier.Enabled() {
		checks := make([]database.HealthCheck, 0, len(batch.Jobs))
		for _, job := range batch.Jobs {
			checks = append(checks, database.HealthCheck{
				JobName:      job.JobName,
				Status:       job.Status,
				ErrorMessage: job.ErrorMessage,
				CollectedAt:  batch.CollectedAt,
				Hostname:     batch.Hostname,
			})
		}
		go s.notifier.NotifyUnhealthy(context.Background(), checks)
	}

	c.JSON(http.StatusOK, gin.H{"inserted": count})
}

func (s *Server) updateHealthCheck(c *gin.Context) {
	var req HealthCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	check := &database.HealthCheck{
		JobName:      req.JobName,
		Status:       req.Status,
		LastRunAt:    req.LastRunAt,
		ExitCode:     req.ExitCode,
		DurationMs:   req.DurationMs,
		ErrorMessage: req.ErrorMessage,
		Hostname:     req.Hostname,
	}

	id, err := s.store.UpdateHealthCheck(c.Request.Context(), check)
	s.metrics.RecordStoreOp("update_health_check", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to update health check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update health check"})
		return
	}

	s.metrics.RecordHealthIngest(1)
	s.broker.Publish(events.Change{Table: events.TableHealthChecks, At: check.CollectedAt})

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ADMIN HANDLERS

func (s *Server) getDatabaseStats(c *gin.Context) {
	stats, err := s.store.GetDatabaseStats(c.Request.Context())
	s.metrics.RecordStoreOp("database_stats", err)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get database stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) compactDatabase(c *gin.Context) {
	if err := s.store.Compact(c.Request.Context()); err != nil {
		logrus.WithError(err).Error("Compaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Compaction failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "compacted"})
}
