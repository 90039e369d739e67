package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"missionctl/internal/database"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    database.Schedule
		wantErr bool
	}{
		{"valid cron", database.Schedule{Kind: KindCron, Expr: "0 9 * * *"}, false},
		{"cron descriptor", database.Schedule{Kind: KindCron, Expr: "@hourly"}, false},
		{"cron missing expr", database.Schedule{Kind: KindCron}, true},
		{"cron bad expr", database.Schedule{Kind: KindCron, Expr: "not a cron"}, true},
		{"valid interval", database.Schedule{Kind: KindEvery, EveryMs: 60000}, false},
		{"interval zero", database.Schedule{Kind: KindEvery}, true},
		{"interval negative", database.Schedule{Kind: KindEvery, EveryMs: -5}, true},
		{"unknown kind", database.Schedule{Kind: "weekly"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNextRun_Interval(t *testing.T) {
	after := time.UnixMilli(1_000_000)

	next, err := NextRun(database.Schedule{Kind: KindEvery, EveryMs: 30_000}, after)
	require.NoError(t, err)
	require.Equal(t, int64(1_030_000), next)
}

func TestNextRun_Cron(t *testing.T) {
	// 2026-01-05 10:30 UTC; next "0 9 * * *" run is 09:00 the next day.
	after := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)

	next, err := NextRun(database.Schedule{Kind: KindCron, Expr: "0 9 * * *"}, after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC).UnixMilli(), next)
}

func TestNextRun_InvalidSpec(t *testing.T) {
	_, err := NextRun(database.Schedule{Kind: "weekly"}, time.Now())
	require.Error(t, err)

	_, err = NextRun(database.Schedule{Kind: KindCron, Expr: "bad"}, time.Now())
	require.Error(t, err)
}
