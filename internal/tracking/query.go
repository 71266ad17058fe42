package tracking

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// QueryFilter narrows journal queries
type QueryFilter struct {
	// Time filters. DatePreset wins over Since/Until.
	Since      *time.Time // inclusive
	Until      *time.Time // exclusive
	DatePreset string     // "today", "yesterday", "week", "month", "all"

	SessionID string
	Kind      string // world, ui, music
	Group     string

	Limit int // 0 = no limit
}

// TimeRange resolves the filter's time bounds in unix milliseconds. A zero start means no lower bound.
func (q *QueryFilter) TimeRange(now time.Time) (startMS, endMS int64, err error) {
	endMS = now.UnixMilli()

	if q.DatePreset != "" {
		start, end, err := ParseDatePreset(q.DatePreset, now)
		if err != nil {
			return 0, 0, err
		}
		if !start.IsZero() {
			startMS = start.UnixMilli()
		}
		return startMS, end.UnixMilli(), nil
	}

	if q.Since != nil {
		startMS = q.Since.UnixMilli()
	}
	if q.Until != nil {
		endMS = q.Until.UnixMilli()
	}
	return startMS, endMS, nil
}

// BuildWhereClause constructs the SQL condition and its arguments; "" means no condition
func (q *QueryFilter) BuildWhereClause(now time.Time) (string, []any, error) {
	var clauses []string
	var args []any

	if q.DatePreset != "" || q.Since != nil || q.Until != nil {
		startMS, endMS, err := q.TimeRange(now)
		if err != nil {
			return "", nil, err
		}
		if startMS > 0 {
			clauses = append(clauses, "timestamp >= ?")
			args = append(args, startMS)
		}
		// Ranges ending now stay open so events from the current millisecond count
		if endMS < now.UnixMilli() {
			clauses = append(clauses, "timestamp < ?")
			args = append(args, endMS)
		}
	}

	if q.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, q.SessionID)
	}

	if q.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, q.Kind)
	}

	if q.Group != "" {
		clauses = append(clauses, "sound_group = ?")
		args = append(args, q.Group)
	}

	whereClause := strings.Join(clauses, " AND ")
	slog.Debug("built where clause", "clause", whereClause, "arg_count", len(args))
	return whereClause, args, nil
}

// ParseDatePreset converts date preset strings to time ranges
func ParseDatePreset(preset string, now time.Time) (start, end time.Time, err error) {
	switch preset {
	case "today":
		start = beginningOfDay(now)
		end = now
	case "yesterday":
		start = beginningOfDay(now.AddDate(0, 0, -1))
		end = beginningOfDay(now)
	case "week":
		start = beginningOfWeek(now)
		end = now
	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = now
	case "all":
		end = now
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown date preset: %s", preset)
	}
	return start, end, nil
}

// ParseSince accepts a date preset or a natural language time such as "2 hours ago"
func ParseSince(input string, now time.Time) (time.Time, error) {
	if start, _, err := ParseDatePreset(input, now); err == nil {
		return start, nil
	}

	result, err := naturaldate.Parse(input, now)
	if err != nil {
		slog.Warn("failed to parse natural language date", "input", input, "error", err)
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", input, err)
	}

	slog.Debug("parsed natural language date", "input", input, "result", result)
	return result, nil
}

func beginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// beginningOfWeek returns Monday 00:00 of t's week
func beginningOfWeek(t time.Time) time.Time {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	return beginningOfDay(t.AddDate(0, 0, -int(weekday-1)))
}
