package tracking

import (
	"bytes"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soundstage.dev/internal/audio"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func soundEvent(typ audio.EventType, id audio.SoundInstanceID, clip string, kind audio.SoundKind, at time.Time) audio.Event {
	group := "sfx"
	track := -1
	if kind == audio.SoundMusic {
		group = "music"
		track = 0
	}
	return audio.Event{
		Type: typ,
		Time: at,
		Entry: audio.PlayingSoundEntry{
			ID:    id,
			Clip:  clip,
			Group: group,
			Kind:  kind,
			Track: track,
		},
	}
}

func TestNewDatabaseCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "journal.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
}

func TestSchemaExists(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"sessions", "playback_events"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		assert.NoError(t, err, table)
	}

	for _, index := range []string{"idx_playback_timestamp", "idx_playback_session", "idx_playback_clip"} {
		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count))
		assert.Equal(t, 1, count, index)
	}
}

func TestJournalRecordsSoundEvents(t *testing.T) {
	db := setupTestDB(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	journal, err := NewJournal(db, "headless", start)
	require.NoError(t, err)
	require.NotEmpty(t, journal.SessionID())

	hook := journal.Hook()
	hook(audio.Event{Type: audio.EventInit, Time: start})
	hook(soundEvent(audio.EventSoundRequested, 1, "click", audio.SoundUI, start))
	hook(soundEvent(audio.EventSoundRequested, 2, "theme", audio.SoundMusic, start.Add(time.Second)))
	hook(soundEvent(audio.EventSoundEnded, 1, "click", audio.SoundUI, start.Add(2*time.Second)))
	hook(audio.Event{Type: audio.EventDeInit, Time: start})

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM playback_events WHERE session_id = ?", journal.SessionID()).Scan(&count))
	assert.Equal(t, 3, count, "lifecycle events are not journaled")

	var group string
	var track int
	require.NoError(t, db.QueryRow("SELECT sound_group, track FROM playback_events WHERE sound_id = 2").Scan(&group, &track))
	assert.Equal(t, "music", group)
	assert.Equal(t, 0, track)

	require.NoError(t, journal.Close(start.Add(time.Minute)))
	var endedAt sql.NullInt64
	require.NoError(t, db.QueryRow("SELECT ended_at FROM sessions WHERE id = ?", journal.SessionID()).Scan(&endedAt))
	assert.True(t, endedAt.Valid)
	assert.Equal(t, start.Add(time.Minute).UnixMilli(), endedAt.Int64)
}

func TestJournalDisablesAfterWriteFailure(t *testing.T) {
	db, err := NewDatabase(":memory:")
	require.NoError(t, err)

	journal, err := NewJournal(db, "headless", time.Now())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	journal.Record(soundEvent(audio.EventSoundRequested, 1, "click", audio.SoundWorld, time.Now()))
	assert.True(t, journal.Disabled())

	// Further events are dropped without touching the database
	journal.Record(soundEvent(audio.EventSoundEnded, 1, "click", audio.SoundWorld, time.Now()))
	assert.True(t, journal.Disabled())
}

func TestSessionsAreDistinct(t *testing.T) {
	db := setupTestDB(t)

	a, err := NewJournal(db, "headless", time.Now())
	require.NoError(t, err)
	b, err := NewJournal(db, "wav", time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestStatsAndSummary(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	first, err := NewJournal(db, "headless", now)
	require.NoError(t, err)
	second, err := NewJournal(db, "headless", now)
	require.NoError(t, err)

	first.Record(soundEvent(audio.EventSoundRequested, 1, "step", audio.SoundWorld, now))
	first.Record(soundEvent(audio.EventSoundRequested, 2, "step", audio.SoundWorld, now))
	first.Record(soundEvent(audio.EventSoundEnded, 1, "step", audio.SoundWorld, now))
	first.Record(soundEvent(audio.EventSoundRequested, 3, "theme", audio.SoundMusic, now))
	second.Record(soundEvent(audio.EventSoundRequested, 1, "click", audio.SoundUI, now))

	stats, err := Stats(db, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, ClipStats{Clip: "step", Kind: "world", Requested: 2, Ended: 1}, stats[0])

	stats, err = Stats(db, QueryFilter{SessionID: second.SessionID()})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "click", stats[0].Clip)

	stats, err = Stats(db, QueryFilter{Kind: "music"})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "theme", stats[0].Clip)

	stats, err = Stats(db, QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, stats, 1)

	summary, err := GetSummary(db, QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Sessions: 2, Requested: 4, Ended: 1, UniqueClips: 3}, *summary)

	summary, err = GetSummary(db, QueryFilter{Group: "nothing"})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, *summary)
}

func TestStatsTimeFilter(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	journal, err := NewJournal(db, "headless", now)
	require.NoError(t, err)
	journal.Record(soundEvent(audio.EventSoundRequested, 1, "old", audio.SoundWorld, now.AddDate(0, 0, -10)))
	journal.Record(soundEvent(audio.EventSoundRequested, 2, "new", audio.SoundWorld, now.Add(-time.Minute)))

	since := now.Add(-time.Hour)
	stats, err := Stats(db, QueryFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "new", stats[0].Clip)

	stats, err = Stats(db, QueryFilter{DatePreset: "all"})
	require.NoError(t, err)
	assert.Len(t, stats, 2)

	_, err = Stats(db, QueryFilter{DatePreset: "fortnight"})
	assert.Error(t, err)
}

func TestStatsNilDatabase(t *testing.T) {
	_, err := Stats(nil, QueryFilter{})
	assert.Error(t, err)
	_, err = GetSummary(nil, QueryFilter{})
	assert.Error(t, err)
}

func TestBuildWhereClause(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

	clause, args, err := (&QueryFilter{}).BuildWhereClause(now)
	require.NoError(t, err)
	assert.Empty(t, clause)
	assert.Empty(t, args)

	filter := QueryFilter{DatePreset: "today", SessionID: "s1", Kind: "ui", Group: "ui"}
	clause, args, err = filter.BuildWhereClause(now)
	require.NoError(t, err)
	assert.Equal(t, "timestamp >= ? AND session_id = ? AND kind = ? AND sound_group = ?", clause)
	require.Len(t, args, 4)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli(), args[0])

	clause, args, err = (&QueryFilter{DatePreset: "yesterday"}).BuildWhereClause(now)
	require.NoError(t, err)
	assert.Equal(t, "timestamp >= ? AND timestamp < ?", clause)
	assert.Equal(t, []any{
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}, args)
}

func TestParseDatePreset(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		preset    string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"today", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), now},
		{"yesterday", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"week", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), now},
		{"month", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), now},
		{"all", time.Time{}, now},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			start, end, err := ParseDatePreset(tt.preset, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}

	_, _, err := ParseDatePreset("decade", now)
	assert.Error(t, err)
}

func TestBeginningOfWeekOnSunday(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), beginningOfWeek(sunday))
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	start, err := ParseSince("yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), start)

	start, err = ParseSince("2 hours ago", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-2*time.Hour), start)
}

func TestSlogHookLogsEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	hook := NewSlogHook(logger).Hook()
	hook(soundEvent(audio.EventSoundRequested, 7, "door", audio.SoundWorld, time.Now()))
	hook(audio.Event{Type: audio.EventPlaybackStarted, Device: 2})

	out := buf.String()
	assert.Contains(t, out, "sound_id=7")
	assert.Contains(t, out, "clip=door")
	assert.Contains(t, out, "event=playback_started")
	assert.Contains(t, out, "device=2")

	assert.NotPanics(t, func() { NopHook()(audio.Event{}) })
	assert.NotNil(t, NewSlogHook(nil))
}
