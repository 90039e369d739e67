package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"missionctl/internal/config"
	"missionctl/internal/database"
	"missionctl/internal/events"
	"missionctl/internal/metrics"
	"missionctl/internal/notify"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := database.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: ":0"},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
		Search:  config.SearchConfig{DefaultLimit: 20, MaxLimit: 100},
		Health:  config.HealthConfig{ListLimit: 100, RecentErrorsLimit: 10},
	}

	return NewServer(cfg, store, events.NewBroker(), metrics.NewCollector(store), notify.NewNotifier(&cfg.Notifications))
}

func doJSON(t *testing.T, server *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestLogActivityEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doJSON(t, server, http.MethodPost, "/api/activities", map[string]any{
		"type":        "cron_run",
		"description": "nightly backup finished",
		"status":      "success",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, resp["id"])

	rec, resp = doJSON(t, server, http.MethodGet, "/api/activities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := resp["items"].([]any)
	require.Len(t, items, 1)

	first := items[0].(map[string]any)
	require.Equal(t, "cron_run", first["type"])
}

func TestLogActivityEndpoint_MissingType(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/activities", map[string]any{
		"description": "no type given",
		"status":      "success",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityStatsEndpoint(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec, _ := doJSON(t, server, http.MethodPost, "/api/activities", map[string]any{
			"type":   "message",
			"status": "success",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, resp := doJSON(t, server, http.MethodGet, "/api/activities/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(3), resp["total_activities"])
	require.Equal(t, float64(3), resp["today_count"])
}

func TestUpsertTaskEndpoint_ComputesNextRun(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doJSON(t, server, http.MethodPost, "/api/tasks", map[string]any{
		"name":        "daily-report",
		"description": "send the daily report",
		"schedule":    map[string]any{"kind": "cron", "expr": "0 9 * * *"},
		"enabled":     true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Greater(t, resp["next_run_at"].(float64), float64(0))

	rec, resp = doJSON(t, server, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), resp["count"])
}

func TestUpsertTaskEndpoint_RejectsBadSchedule(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/tasks", map[string]any{
		"name":     "broken",
		"schedule": map[string]any{"kind": "cron", "expr": "not a cron"},
		"enabled":  true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeeklyScheduleEndpoint_RequiresStart(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodGet, "/api/tasks/week", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthIngestAndStats(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doJSON(t, server, http.MethodPost, "/api/health/ingest", map[string]any{
		"jobs": []map[string]any{
			{"job_name": "backup", "status": "success"},
			{"job_name": "sync", "status": "error", "error_message": "exit 1"},
		},
		"collected_at": 1000,
		"hostname":     "host-a",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), resp["inserted"])

	rec, resp = doJSON(t, server, http.MethodGet, "/api/health/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), resp["total"])
	require.Equal(t, float64(1), resp["success"])
	require.Equal(t, float64(1), resp["error"])

	rec, resp = doJSON(t, server, http.MethodGet, "/api/health/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), resp["count"])
}

func TestHealthIngest_RejectsIncompleteBatch(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/health/ingest", map[string]any{
		"jobs":         []map[string]any{{"job_name": "backup"}},
		"collected_at": 1000,
		"hostname":     "host-a",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/activities", map[string]any{
		"type":        "deploy",
		"description": "Deployed the staging build",
		"status":      "success",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doJSON(t, server, http.MethodGet, "/api/search?q=staging", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), resp["count"])

	results := resp["data"].([]any)
	first := results[0].(map[string]any)
	require.Equal(t, "activity", first["result_type"])
}

func TestSearchEndpoint_RequiresQuery(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodGet, "/api/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryAndIndexEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doJSON(t, server, http.MethodPut, "/api/memories", map[string]any{
		"path":    "notes/today.md",
		"content": "remember the milk",
		"type":    "note",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	firstID := resp["id"]

	// Upsert by path keeps the id stable.
	rec, resp = doJSON(t, server, http.MethodPut, "/api/memories", map[string]any{
		"path":    "notes/today.md",
		"content": "remember the bread",
		"type":    "note",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, firstID, resp["id"])

	rec, resp = doJSON(t, server, http.MethodPost, "/api/index", map[string]any{
		"content":      "service runbook",
		"content_type": "doc",
		"source_path":  "docs/runbook.md",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, resp["id"])
}

func TestServerStatusEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doJSON(t, server, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", resp["status"])
}

func TestAdminStatsEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/activities", map[string]any{
		"type":   "message",
		"status": "success",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doJSON(t, server, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), resp["activity_count"])
}
