package tracking

import (
	"database/sql"
	"fmt"
	"time"
)

// ClipStats counts journal events for one clip and sound kind
type ClipStats struct {
	Clip      string `json:"clip"`
	Kind      string `json:"kind"`
	Requested int    `json:"requested"`
	Ended     int    `json:"ended"`
}

// Summary aggregates the journal over a filter
type Summary struct {
	Sessions    int `json:"sessions"`
	Requested   int `json:"requested"`
	Ended       int `json:"ended"`
	UniqueClips int `json:"unique_clips"`
}

// Stats returns per clip and kind counts, most requested first
func Stats(db *sql.DB, filter QueryFilter) ([]ClipStats, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT clip, kind,
			SUM(CASE WHEN event = 'requested' THEN 1 ELSE 0 END) AS requested,
			SUM(CASE WHEN event = 'ended' THEN 1 ELSE 0 END) AS ended
		FROM playback_events`

	whereClause, args, err := filter.BuildWhereClause(time.Now())
	if err != nil {
		return nil, err
	}
	if whereClause != "" {
		query += " WHERE " + whereClause
	}

	query += `
		GROUP BY clip, kind
		ORDER BY requested DESC, clip ASC, kind ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clip stats: %w", err)
	}
	defer rows.Close()

	var results []ClipStats
	for rows.Next() {
		var stats ClipStats
		if err := rows.Scan(&stats.Clip, &stats.Kind, &stats.Requested, &stats.Ended); err != nil {
			return nil, fmt.Errorf("failed to scan clip stats row: %w", err)
		}
		results = append(results, stats)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clip stats rows: %w", err)
	}

	return results, nil
}

// GetSummary returns totals over the filter
func GetSummary(db *sql.DB, filter QueryFilter) (*Summary, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT
			COUNT(DISTINCT session_id),
			COALESCE(SUM(CASE WHEN event = 'requested' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event = 'ended' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT clip)
		FROM playback_events`

	whereClause, args, err := filter.BuildWhereClause(time.Now())
	if err != nil {
		return nil, err
	}
	if whereClause != "" {
		query += " WHERE " + whereClause
	}

	var summary Summary
	err = db.QueryRow(query, args...).Scan(&summary.Sessions, &summary.Requested, &summary.Ended, &summary.UniqueClips)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal summary: %w", err)
	}

	return &summary, nil
}
