package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobalSearch_FansOutAcrossTables(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.LogActivity(ctx, &Activity{
		Timestamp:   300,
		Type:        "deploy",
		Description: "Deployed the staging build",
		Status:      "success",
	})
	require.NoError(t, err)

	_, err = store.UpsertMemory(ctx, &Memory{
		Path:         "notes/deploys.md",
		Content:      "deployment checklist",
		LastModified: 200,
		Type:         "note",
	})
	require.NoError(t, err)

	_, err = store.IndexContent(ctx, &SearchIndexEntry{
		Content:     "How to deploy the service",
		ContentType: "doc",
		SourcePath:  "docs/deploy.md",
		Title:       "Deploy guide",
		Timestamp:   100,
	})
	require.NoError(t, err)

	results, err := store.GlobalSearch(ctx, "DEPLOY", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Merged result is sorted by descending timestamp across sources.
	require.Equal(t, "activity", results[0].ResultType)
	require.Equal(t, int64(300), results[0].Timestamp)
	require.Equal(t, "memory", results[1].ResultType)
	require.Equal(t, "indexed", results[2].ResultType)
}

func TestGlobalSearch_NoMatches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.LogActivity(ctx, &Activity{
		Timestamp:   100,
		Type:        "message",
		Description: "hello world",
		Status:      "success",
	})
	require.NoError(t, err)

	results, err := store.GlobalSearch(ctx, "zebra", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestGlobalSearch_RecencyWindowBoundsCoverage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Two old matches, then enough newer non-matching rows to push them
	// outside the 2*limit fetch window.
	for ts := int64(1); ts <= 2; ts++ {
		_, err := store.LogActivity(ctx, &Activity{
			Timestamp:   ts,
			Type:        "message",
			Description: "needle in here",
			Status:      "success",
		})
		require.NoError(t, err)
	}
	for ts := int64(3); ts <= 10; ts++ {
		_, err := store.LogActivity(ctx, &Activity{
			Timestamp:   ts,
			Type:        "message",
			Description: fmt.Sprintf("filler %d", ts),
			Status:      "success",
		})
		require.NoError(t, err)
	}

	results, err := store.GlobalSearch(ctx, "needle", 2)
	require.NoError(t, err)
	require.Empty(t, results, "matches outside the recency window are unreachable")
}

func TestGlobalSearch_PerSourceCap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for ts := int64(1); ts <= 6; ts++ {
		_, err := store.LogActivity(ctx, &Activity{
			Timestamp:   ts,
			Type:        "message",
			Description: "needle everywhere",
			Status:      "success",
		})
		require.NoError(t, err)
	}

	results, err := store.GlobalSearch(ctx, "needle", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
}
