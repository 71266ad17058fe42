package tracking

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"soundstage.dev/internal/audio"
)

// Journal records sound requests and completions reported by the facade.
// A write failure disables the journal for the rest of the session.
type Journal struct {
	db        *sql.DB
	sessionID string

	mu       sync.Mutex
	disabled bool
}

// NewJournal opens a new session row and returns a journal writing into it
func NewJournal(db *sql.DB, backend string, now time.Time) (*Journal, error) {
	sessionID := uuid.NewString()

	_, err := db.Exec(`INSERT INTO sessions (id, started_at, backend) VALUES (?, ?, ?)`,
		sessionID, now.UnixMilli(), backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal session: %w", err)
	}

	slog.Debug("journal session started", "session_id", sessionID, "backend", backend)
	return &Journal{db: db, sessionID: sessionID}, nil
}

// SessionID returns the id of the journal's session
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Disabled reports whether a previous write failure turned the journal off
func (j *Journal) Disabled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.disabled
}

// Hook returns the facade hook feeding this journal
func (j *Journal) Hook() audio.Hook {
	return j.Record
}

// Record stores sound events and ignores everything else
func (j *Journal) Record(ev audio.Event) {
	var event string
	switch ev.Type {
	case audio.EventSoundRequested:
		event = "requested"
	case audio.EventSoundEnded:
		event = "ended"
	default:
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.disabled {
		return
	}

	entry := ev.Entry
	_, err := j.db.Exec(`
		INSERT INTO playback_events (session_id, sound_id, kind, clip, sound_group, track, event, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.sessionID,
		int64(entry.ID),
		entry.Kind.String(),
		entry.Clip,
		entry.Group,
		entry.Track,
		event,
		ev.Time.UnixMilli())
	if err != nil {
		slog.Warn("playback journal failed, disabling", "error", err, "sound_id", entry.ID)
		j.disabled = true
		return
	}

	slog.Debug("journaled playback event",
		"session_id", j.sessionID,
		"sound_id", entry.ID,
		"event", event,
		"clip", entry.Clip)
}

// Close marks the session as ended
func (j *Journal) Close(now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, now.UnixMilli(), j.sessionID)
	if err != nil {
		return fmt.Errorf("failed to close journal session: %w", err)
	}
	return nil
}
