package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func ingestOne(t *testing.T, store Store, jobName, status string, collectedAt int64, lastRunAt *int64) {
	t.Helper()

	_, err := store.UpdateHealthCheck(context.Background(), &HealthCheck{
		JobName:     jobName,
		Status:      status,
		CollectedAt: collectedAt,
		LastRunAt:   lastRunAt,
		Hostname:    "test-host",
	})
	require.NoError(t, err)
}

func millis(v int64) *int64 { return &v }

func TestIngestHealthData_InsertsOneRowPerJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	batch := HealthBatch{
		Jobs: []HealthReport{
			{JobName: "backup", Status: HealthSuccess},
			{JobName: "sync", Status: HealthError, ErrorMessage: "exit 1"},
			{JobName: "rotate", Status: HealthSuccess},
		},
		CollectedAt: 1000,
		Hostname:    "host-a",
	}

	count, err := store.IngestHealthData(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// Re-ingesting appends duplicate history rows, never upserts.
	count, err = store.IngestHealthData(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	stats, err := store.GetDatabaseStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, stats.HealthCheckCount)
}

func TestIngestHealthData_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.IngestHealthData(ctx, HealthBatch{CollectedAt: 1000})
	require.Error(t, err, "hostname is required")

	_, err = store.IngestHealthData(ctx, HealthBatch{
		Jobs:        []HealthReport{{JobName: "backup"}},
		CollectedAt: 1000,
		Hostname:    "host-a",
	})
	require.Error(t, err, "status is required")
}

func TestGetHealthStats_LatestPerJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ingestOne(t, store, "jobA", HealthSuccess, 10, nil)
	ingestOne(t, store, "jobA", HealthError, 20, nil)
	ingestOne(t, store, "jobB", HealthSuccess, 15, nil)

	stats, err := store.GetHealthStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 1, stats.Error)
	require.Equal(t, 0, stats.Stale)
	require.Len(t, stats.StaleJobs, 1)
	require.Equal(t, "jobA", stats.StaleJobs[0].JobName)
}

func TestGetHealthStats_StatusBuckets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	statuses := []string{HealthSuccess, HealthError, HealthStale, HealthRunning, HealthUnknown, HealthNoLogs}
	for i, status := range statuses {
		ingestOne(t, store, "job-"+status, status, int64(i+1), nil)
	}

	stats, err := store.GetHealthStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, stats.Total)
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 1, stats.Error)
	require.Equal(t, 1, stats.Stale)
	require.Equal(t, 1, stats.Running)
	require.Equal(t, 1, stats.Unknown)
	require.Equal(t, 1, stats.NoLogs)
	require.Len(t, stats.StaleJobs, 3)
}

func TestListHealthChecks_ReducesWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ingestOne(t, store, "jobA", HealthSuccess, 10, millis(5))
	ingestOne(t, store, "jobA", HealthError, 30, millis(25))
	ingestOne(t, store, "jobB", HealthSuccess, 20, millis(18))

	list, err := store.ListHealthChecks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, "jobA", list.Items[0].JobName)
	require.Equal(t, HealthError, list.Items[0].Status)
	require.Equal(t, "jobB", list.Items[1].JobName)
	require.NotNil(t, list.CollectedAt)
	require.Equal(t, int64(30), *list.CollectedAt)
}

func TestListHealthChecks_WindowOmitsStaleReporters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// jobB's only row is older than the whole fetch window.
	ingestOne(t, store, "jobB", HealthSuccess, 10, nil)
	ingestOne(t, store, "jobA", HealthSuccess, 20, nil)
	ingestOne(t, store, "jobA", HealthSuccess, 30, nil)
	ingestOne(t, store, "jobA", HealthSuccess, 40, nil)

	list, err := store.ListHealthChecks(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "jobA", list.Items[0].JobName)
}

func TestGetRecentErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ingestOne(t, store, "ok-job", HealthSuccess, 100, millis(90))
	ingestOne(t, store, "err-old", HealthError, 101, millis(10))
	ingestOne(t, store, "err-new", HealthError, 102, millis(50))
	ingestOne(t, store, "stale-job", HealthStale, 103, millis(30))
	ingestOne(t, store, "silent-job", HealthNoLogs, 104, nil)

	errorsOut, err := store.GetRecentErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, errorsOut, 4)
	require.Equal(t, "err-new", errorsOut[0].JobName)
	require.Equal(t, "stale-job", errorsOut[1].JobName)
	require.Equal(t, "err-old", errorsOut[2].JobName)
	require.Equal(t, "silent-job", errorsOut[3].JobName)

	errorsOut, err = store.GetRecentErrors(ctx, 2)
	require.NoError(t, err)
	require.Len(t, errorsOut, 2)
	require.Equal(t, "err-new", errorsOut[0].JobName)
}

func TestUpdateHealthCheck_Defaults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.UpdateHealthCheck(ctx, &HealthCheck{
		JobName: "manual-job",
		Status:  HealthRunning,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	list, err := store.ListHealthChecks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "manual", list.Items[0].Hostname)
	require.Greater(t, list.Items[0].CollectedAt, int64(0))
}

func TestLatestPerJob_TieTimestampsKeepOneRow(t *testing.T) {
	checks := []HealthCheck{
		{JobName: "jobA", Status: HealthSuccess, CollectedAt: 10},
		{JobName: "jobA", Status: HealthError, CollectedAt: 10},
	}

	reduced := latestPerJob(checks)
	require.Len(t, reduced, 1, "equal timestamps reduce to a single row, winner unspecified")
}
