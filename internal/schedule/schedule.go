// internal/schedule/schedule.go - Schedule spec validation and next-run computation
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"missionctl/internal/database"
)

// Schedule kinds.
const (
	KindCron  = "cron"
	KindEvery = "every"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that a schedule spec is well-formed: a known kind with the
// matching payload field set, and a parseable cron expression for KindCron.
func Validate(s database.Schedule) error {
	switch s.Kind {
	case KindCron:
		if s.Expr == "" {
			return fmt.Errorf("cron schedule requires an expression")
		}
		if _, err := cronParser.Parse(s.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Expr, err)
		}
	case KindEvery:
		if s.EveryMs <= 0 {
			return fmt.Errorf("interval schedule requires a positive interval")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
	return nil
}

// NextRun computes the next run after `after`, in unix milliseconds.
func NextRun(s database.Schedule, after time.Time) (int64, error) {
	switch s.Kind {
	case KindCron:
		spec, err := cronParser.Parse(s.Expr)
		if err != nil {
			return 0, fmt.Errorf("invalid cron expression %q: %w", s.Expr, err)
		}
		return spec.Next(after).UnixMilli(), nil
	case KindEvery:
		if s.EveryMs <= 0 {
			return 0, fmt.Errorf("interval schedule requires a positive interval")
		}
		return after.UnixMilli() + s.EveryMs, nil
	default:
		return 0, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}
