// internal/database/search.go - Global keyword search
package database

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.etcd.io/bbolt"
)

// GlobalSearch fans a case-insensitive substring match out across
// activities, memories and the search index. Each source is capped at the
// 2*limit most recent rows before filtering, so coverage is recency-bounded
// rather than exhaustive.
func (s *BoltStore) GlobalSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	term := strings.ToLower(query)

	var results []SearchResult

	err := s.view(func(tx *bbolt.Tx) error {
		results = append(results, searchActivities(tx, term, limit)...)
		results = append(results, searchMemories(tx, term, limit)...)
		results = append(results, searchIndexed(tx, term, limit)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Rows without a timestamp sort last.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp > results[j].Timestamp
	})

	return results, nil
}

func searchActivities(tx *bbolt.Tx, term string, limit int) []SearchResult {
	var matched []SearchResult

	scanned := 0
	reverseScan(tx.Bucket(ActivitiesBucket), 0, func(v []byte) bool {
		scanned++

		var activity Activity
		if err := json.Unmarshal(v, &activity); err == nil &&
			strings.Contains(strings.ToLower(activity.Description), term) &&
			len(matched) < limit {
			matched = append(matched, SearchResult{
				ResultType:  "activity",
				ID:          activity.ID,
				Timestamp:   activity.Timestamp,
				Content:     activity.Description,
				ContentType: activity.Type,
			})
		}
		return scanned < 2*limit
	})

	return matched
}

func searchMemories(tx *bbolt.Tx, term string, limit int) []SearchResult {
	var matched []SearchResult

	scanned := 0
	_ = tx.Bucket(MemoriesBucket).ForEach(func(k, v []byte) error {
		if scanned >= 2*limit {
			return nil
		}
		scanned++

		var memory Memory
		if err := json.Unmarshal(v, &memory); err == nil &&
			strings.Contains(strings.ToLower(memory.Content), term) &&
			len(matched) < limit {
			matched = append(matched, SearchResult{
				ResultType: "memory",
				ID:         memory.ID,
				Timestamp:  memory.LastModified,
				Content:    memory.Content,
				SourcePath: memory.Path,
			})
		}
		return nil
	})

	return matched
}

func searchIndexed(tx *bbolt.Tx, term string, limit int) []SearchResult {
	var matched []SearchResult

	scanned := 0
	reverseScan(tx.Bucket(SearchIndexBucket), 0, func(v []byte) bool {
		scanned++

		var entry SearchIndexEntry
		if err := json.Unmarshal(v, &entry); err == nil &&
			strings.Contains(strings.ToLower(entry.Content), term) &&
			len(matched) < limit {
			matched = append(matched, SearchResult{
				ResultType:  "indexed",
				ID:          entry.ID,
				Timestamp:   entry.Timestamp,
				Title:       entry.Title,
				Content:     entry.Content,
				SourcePath:  entry.SourcePath,
				ContentType: entry.ContentType,
			})
		}
		return scanned < 2*limit
	})

	return matched
}
