// internal/database/maintenance.go - Database stats and compaction
package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

func (s *BoltStore) GetDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	err := s.view(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(ActivitiesBucket); b != nil {
			stats.ActivityCount = b.Stats().KeyN
		}
		if b := tx.Bucket(TasksBucket); b != nil {
			stats.TaskCount = b.Stats().KeyN
		}
		if b := tx.Bucket(SearchIndexBucket); b != nil {
			stats.SearchIndexCount = b.Stats().KeyN
		}
		if b := tx.Bucket(MemoriesBucket); b != nil {
			stats.MemoryCount = b.Stats().KeyN
		}
		if b := tx.Bucket(HealthChecksBucket); b != nil {
			stats.HealthCheckCount = b.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.FileSizeBytes = fileInfo.Size()
	}

	return stats, nil
}

// Compact rewrites the database file to reclaim space left by the
// append-heavy activity and health history buckets.
func (s *BoltStore) Compact(ctx context.Context) error {
	logrus.Info("Starting database compaction")

	// Exclusive for the whole rewrite: readers must not observe the closed
	// db or the pointer swap.
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.path + ".compact.tmp"

	newDB, err := bbolt.Open(tmpPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	defer os.Remove(tmpPath)

	if err := bbolt.Compact(newDB, s.db, 0); err != nil {
		newDB.Close()
		return fmt.Errorf("failed to compact database: %w", err)
	}

	newDB.Close()
	s.db.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}

	s.db, err = bbolt.Open(s.path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to reopen compacted database: %w", err)
	}

	logrus.Info("Database compaction completed")
	return nil
}
