// internal/database/health.go - Cron job health queries
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// latestPerJob reduces a candidate set of health rows to one row per job
// name, keeping the row with the greatest CollectedAt. The caller decides
// the candidate set (a recency window or the whole table); the reduction
// itself is scope-agnostic.
func latestPerJob(checks []HealthCheck) []HealthCheck {
	latest := make(map[string]HealthCheck)
	for _, check := range checks {
		if prev, ok := latest[check.JobName]; !ok || check.CollectedAt > prev.CollectedAt {
			latest[check.JobName] = check
		}
	}

	reduced := make([]HealthCheck, 0, len(latest))
	for _, check := range latest {
		reduced = append(reduced, check)
	}
	return reduced
}

func lastRunMillis(check HealthCheck) int64 {
	if check.LastRunAt == nil {
		return 0
	}
	return *check.LastRunAt
}

func sortByLastRunDesc(checks []HealthCheck) {
	sort.Slice(checks, func(i, j int) bool {
		return lastRunMillis(checks[i]) > lastRunMillis(checks[j])
	})
}

// fetchHealthChecks returns up to max rows newest-first by CollectedAt;
// max <= 0 means the whole table.
func (s *BoltStore) fetchHealthChecks(max int) ([]HealthCheck, error) {
	var checks []HealthCheck

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(HealthChecksBucket)
		reverseScan(b, 0, func(v []byte) bool {
			var check HealthCheck
			if err := json.Unmarshal(v, &check); err != nil {
				return true
			}
			checks = append(checks, check)
			return max <= 0 || len(checks) < max
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return checks, nil
}

// ListHealthChecks reduces the newest `limit` rows to one per job. A job
// whose latest row fell out of that window is not listed; the dashboard
// trades completeness for a bounded read.
func (s *BoltStore) ListHealthChecks(ctx context.Context, limit int) (*HealthList, error) {
	if limit <= 0 {
		limit = DefaultHealthLimit
	}

	window, err := s.fetchHealthChecks(limit)
	if err != nil {
		return nil, err
	}

	items := latestPerJob(window)
	sortByLastRunDesc(items)

	list := &HealthList{Items: items}
	for i := range items {
		if list.CollectedAt == nil || items[i].CollectedAt > *list.CollectedAt {
			list.CollectedAt = &items[i].CollectedAt
		}
	}

	return list, nil
}

func (s *BoltStore) GetHealthStats(ctx context.Context) (*HealthStats, error) {
	all, err := s.fetchHealthChecks(0)
	if err != nil {
		return nil, err
	}

	current := latestPerJob(all)

	stats := &HealthStats{
		Total:     len(current),
		StaleJobs: []HealthCheck{},
	}
	for _, check := range current {
		switch check.Status {
		case HealthSuccess:
			stats.Success++
		case HealthError:
			stats.Error++
		case HealthStale:
			stats.Stale++
		case HealthRunning:
			stats.Running++
		case HealthNoLogs:
			stats.NoLogs++
		default:
			stats.Unknown++
		}
		if isUnhealthy(check.Status) {
			stats.StaleJobs = append(stats.StaleJobs, check)
		}
	}

	return stats, nil
}

func (s *BoltStore) GetRecentErrors(ctx context.Context, limit int) ([]HealthCheck, error) {
	if limit <= 0 {
		limit = DefaultErrorsLimit
	}

	all, err := s.fetchHealthChecks(0)
	if err != nil {
		return nil, err
	}

	var errorsOut []HealthCheck
	for _, check := range latestPerJob(all) {
		if isUnhealthy(check.Status) {
			errorsOut = append(errorsOut, check)
		}
	}

	sortByLastRunDesc(errorsOut)
	if len(errorsOut) > limit {
		errorsOut = errorsOut[:limit]
	}

	return errorsOut, nil
}

func isUnhealthy(status string) bool {
	return status == HealthError || status == HealthStale || status == HealthNoLogs
}

// IngestHealthData appends one row per job in the batch. History is never
// overwritten; re-ingesting the same batch produces duplicate rows.
func (s *BoltStore) IngestHealthData(ctx context.Context, batch HealthBatch) (int, error) {
	if batch.Hostname == "" {
		return 0, fmt.Errorf("hostname is required")
	}
	if batch.CollectedAt == 0 {
		return 0, fmt.Errorf("collection timestamp is required")
	}
	for _, job := range batch.Jobs {
		if job.JobName == "" || job.Status == "" {
			return 0, fmt.Errorf("job name and status are required for every report")
		}
	}

	count := 0
	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(HealthChecksBucket)

		for _, job := range batch.Jobs {
			check := HealthCheck{
				ID:           uuid.New().String(),
				JobName:      job.JobName,
				Status:       job.Status,
				LastRunAt:    job.LastRunAt,
				ExitCode:     job.ExitCode,
				DurationMs:   job.DurationMs,
				ErrorMessage: job.ErrorMessage,
				CollectedAt:  batch.CollectedAt,
				Hostname:     batch.Hostname,
			}

			data, err := json.Marshal(check)
			if err != nil {
				return fmt.Errorf("failed to marshal health check: %w", err)
			}
			if err := b.Put(timeKey(check.CollectedAt, check.ID), data); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// UpdateHealthCheck appends a single manual observation.
func (s *BoltStore) UpdateHealthCheck(ctx context.Context, check *HealthCheck) (string, error) {
	if check.JobName == "" {
		return "", fmt.Errorf("job name is required")
	}
	if check.Status == "" {
		return "", fmt.Errorf("status is required")
	}

	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	if check.CollectedAt == 0 {
		check.CollectedAt = time.Now().UnixMilli()
	}
	if check.Hostname == "" {
		check.Hostname = "manual"
	}

	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(HealthChecksBucket)

		data, err := json.Marshal(check)
		if err != nil {
			return fmt.Errorf("failed to marshal health check: %w", err)
		}

		return b.Put(timeKey(check.CollectedAt, check.ID), data)
	})
	if err != nil {
		return "", err
	}

	return check.ID, nil
}
