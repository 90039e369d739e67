// internal/database/boltstore.go - BoltDB implementation
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	ActivitiesBucket   = []byte("activities")
	TasksBucket        = []byte("scheduled_tasks")
	SearchIndexBucket  = []byte("search_index")
	MemoriesBucket     = []byte("memories")
	HealthChecksBucket = []byte("health_checks")
)

const (
	DefaultActivityLimit = 50
	DefaultSearchLimit   = 20
	DefaultHealthLimit   = 100
	DefaultErrorsLimit   = 10
)

// BoltStore implements Store on a single bbolt file. The mutex guards the
// db pointer, which Compact closes and swaps while handlers may be reading.
type BoltStore struct {
	mu   sync.RWMutex
	db   *bbolt.DB
	path string
}

func NewBoltStore(path string) (Store, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	store := &BoltStore{db: db, path: path}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

// view and update hold the read lock across the transaction so the db
// pointer cannot be swapped out from under it.
func (s *BoltStore) view(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.View(fn)
}

func (s *BoltStore) update(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Update(fn)
}

func (s *BoltStore) initBuckets() error {
	return s.update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{ActivitiesBucket, TasksBucket, SearchIndexBucket, MemoriesBucket, HealthChecksBucket}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// timeKey builds a bucket key that sorts by timestamp, then by row id. The
// id suffix keeps keys unique when two rows share a timestamp, so a cursor
// scan never skips or repeats a row at a page boundary.
func timeKey(ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%020d:%s", ts, id))
}

// reverseScan walks a bucket newest-first. When before > 0, iteration starts
// strictly below the first key with that timestamp (exclusive boundary).
// fn returns false to stop the scan.
func reverseScan(b *bbolt.Bucket, before int64, fn func(v []byte) bool) {
	c := b.Cursor()

	var k, v []byte
	if before > 0 {
		boundary := []byte(fmt.Sprintf("%020d:", before))
		k, v = c.Seek(boundary)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
	} else {
		k, v = c.Last()
	}

	for ; k != nil; k, v = c.Prev() {
		if !fn(v) {
			return
		}
	}
}

// ACTIVITY OPERATIONS

func (s *BoltStore) LogActivity(ctx context.Context, activity *Activity) (string, error) {
	if activity.Type == "" {
		return "", fmt.Errorf("activity type is required")
	}
	if activity.Status == "" {
		return "", fmt.Errorf("activity status is required")
	}

	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.Timestamp == 0 {
		activity.Timestamp = time.Now().UnixMilli()
	}

	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ActivitiesBucket)

		data, err := json.Marshal(activity)
		if err != nil {
			return fmt.Errorf("failed to marshal activity: %w", err)
		}

		return b.Put(timeKey(activity.Timestamp, activity.ID), data)
	})
	if err != nil {
		return "", err
	}

	return activity.ID, nil
}

func (s *BoltStore) ListActivities(ctx context.Context, q ActivityQuery) (*ActivityPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	// Fetch limit+1 matching rows to learn whether more pages exist.
	matches, err := s.fetchActivities(q.Cursor, q.Type, limit+1)
	if err != nil {
		return nil, err
	}

	page := &ActivityPage{Items: matches}
	if len(matches) > limit {
		page.Items = matches[:limit]
		last := page.Items[len(page.Items)-1].Timestamp
		page.NextCursor = &last
	}

	return page, nil
}

func (s *BoltStore) ListActivitiesPaginated(ctx context.Context, activityType string, opts PaginationOpts) (*PaginatedActivities, error) {
	numItems := opts.NumItems
	if numItems <= 0 {
		numItems = DefaultActivityLimit
	}

	var before int64
	if opts.Cursor != "" {
		parsed, err := strconv.ParseInt(opts.Cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pagination cursor %q: %w", opts.Cursor, err)
		}
		before = parsed
	}

	matches, err := s.fetchActivities(before, activityType, numItems+1)
	if err != nil {
		return nil, err
	}

	result := &PaginatedActivities{
		Page:   matches,
		IsDone: len(matches) <= numItems,
	}
	if !result.IsDone {
		result.Page = matches[:numItems]
		result.ContinueCursor = strconv.FormatInt(result.Page[len(result.Page)-1].Timestamp, 10)
	}

	return result, nil
}

// fetchActivities scans the feed newest-first, filtered by type and by the
// exclusive timestamp boundary, collecting up to max rows.
func (s *BoltStore) fetchActivities(before int64, activityType string, max int) ([]Activity, error) {
	var matches []Activity

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ActivitiesBucket)
		reverseScan(b, before, func(v []byte) bool {
			var activity Activity
			if err := json.Unmarshal(v, &activity); err != nil {
				return true // Skip malformed entries
			}
			if activityType != "" && activity.Type != activityType {
				return true
			}
			matches = append(matches, activity)
			return len(matches) < max
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return matches, nil
}

func (s *BoltStore) GetActivityStats(ctx context.Context) (*ActivityStats, error) {
	now := time.Now().UnixMilli()
	todayStart := now - 24*60*60*1000

	stats := &ActivityStats{ByType: make(map[string]int)}

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ActivitiesBucket)
		return b.ForEach(func(k, v []byte) error {
			var activity Activity
			if err := json.Unmarshal(v, &activity); err != nil {
				return nil
			}

			stats.TotalActivities++
			if activity.Timestamp > todayStart {
				stats.TodayCount++
			}
			stats.ByType[activity.Type]++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// SCHEDULED TASK OPERATIONS

func (s *BoltStore) UpsertScheduledTask(ctx context.Context, task *ScheduledTask) (string, error) {
	if task.Name == "" {
		return "", fmt.Errorf("task name is required")
	}

	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(TasksBucket)

		// Matching by name: a second write replaces the caller-supplied
		// fields but keeps the stored id and run history.
		if existing := b.Get([]byte(task.Name)); existing != nil {
			var prev ScheduledTask
			if err := json.Unmarshal(existing, &prev); err == nil {
				task.ID = prev.ID
				if task.LastRunAt == nil {
					task.LastRunAt = prev.LastRunAt
				}
				if task.LastStatus == "" {
					task.LastStatus = prev.LastStatus
				}
			}
		}
		if task.ID == "" {
			task.ID = uuid.New().String()
		}
		task.UpdatedAt = time.Now().UnixMilli()

		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}

		return b.Put([]byte(task.Name), data)
	})
	if err != nil {
		return "", err
	}

	return task.ID, nil
}

func (s *BoltStore) GetScheduledTask(ctx context.Context, name string) (*ScheduledTask, error) {
	var task ScheduledTask

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(TasksBucket)
		v := b.Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &task)
	})
	if err != nil {
		return nil, err
	}

	return &task, nil
}

func (s *BoltStore) ListScheduledTasks(ctx context.Context) ([]ScheduledTask, error) {
	var tasks []ScheduledTask

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(TasksBucket)
		return b.ForEach(func(k, v []byte) error {
			var task ScheduledTask
			if err := json.Unmarshal(v, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task %s: %w", k, err)
			}
			if task.Enabled {
				tasks = append(tasks, task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].NextRunAt < tasks[j].NextRunAt
	})

	return tasks, nil
}

func (s *BoltStore) GetWeeklySchedule(ctx context.Context, weekStart int64) ([]ScheduledTask, error) {
	weekEnd := weekStart + 7*24*60*60*1000

	var tasks []ScheduledTask

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(TasksBucket)
		return b.ForEach(func(k, v []byte) error {
			var task ScheduledTask
			if err := json.Unmarshal(v, &task); err != nil {
				return nil
			}
			if task.NextRunAt >= weekStart && task.NextRunAt < weekEnd {
				tasks = append(tasks, task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].NextRunAt < tasks[j].NextRunAt
	})

	return tasks, nil
}

// SEARCH INDEX / MEMORY WRITES

func (s *BoltStore) IndexContent(ctx context.Context, entry *SearchIndexEntry) (string, error) {
	if entry.Content == "" {
		return "", fmt.Errorf("content is required")
	}
	if entry.ContentType == "" {
		return "", fmt.Errorf("content type is required")
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}

	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(SearchIndexBucket)

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal search index entry: %w", err)
		}

		return b.Put(timeKey(entry.Timestamp, entry.ID), data)
	})
	if err != nil {
		return "", err
	}

	return entry.ID, nil
}

func (s *BoltStore) UpsertMemory(ctx context.Context, memory *Memory) (string, error) {
	if memory.Path == "" {
		return "", fmt.Errorf("memory path is required")
	}

	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MemoriesBucket)

		if existing := b.Get([]byte(memory.Path)); existing != nil {
			var prev Memory
			if err := json.Unmarshal(existing, &prev); err == nil {
				memory.ID = prev.ID
			}
		}
		if memory.ID == "" {
			memory.ID = uuid.New().String()
		}
		if memory.LastModified == 0 {
			memory.LastModified = time.Now().UnixMilli()
		}

		data, err := json.Marshal(memory)
		if err != nil {
			return fmt.Errorf("failed to marshal memory: %w", err)
		}

		return b.Put([]byte(memory.Path), data)
	})
	if err != nil {
		return "", err
	}

	return memory.ID, nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
