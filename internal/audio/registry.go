package audio

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// SoundKind distinguishes how an instance was requested
type SoundKind int

const (
	SoundWorld SoundKind = iota
	SoundUI
	SoundMusic
)

func (k SoundKind) String() string {
	switch k {
	case SoundWorld:
		return "world"
	case SoundUI:
		return "ui"
	case SoundMusic:
		return "music"
	default:
		return "unknown"
	}
}

// PlayingSoundEntry is the control-side record of a requested instance
type PlayingSoundEntry struct {
	ID          SoundInstanceID
	Clip        string
	Group       string
	Kind        SoundKind
	Track       int // music track, -1 otherwise
	RequestedAt time.Time
}

// Snapshot is what the audio goroutine reports after each cycle
type Snapshot struct {
	// Playing lists the instances the engine is still mixing
	Playing []SoundInstanceID
	// Acked is the highest id whose start command has executed
	Acked SoundInstanceID
}

// Registry tracks which instances are alive. The audio goroutine publishes
// snapshots; the control goroutine reconciles them against its entries.
// An entry survives while its id is in the latest snapshot or its start
// command has not executed yet.
type Registry struct {
	mu        sync.Mutex
	published *Snapshot

	entries map[SoundInstanceID]PlayingSoundEntry
	acked   SoundInstanceID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[SoundInstanceID]PlayingSoundEntry)}
}

// Publish stores the audio goroutine's latest view, replacing any unconsumed one
func (r *Registry) Publish(snapshot Snapshot) {
	r.mu.Lock()
	r.published = &snapshot
	r.mu.Unlock()
}

// Track records a newly requested instance as pending
func (r *Registry) Track(entry PlayingSoundEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
}

// Reconcile applies the latest published snapshot and returns the entries that ended,
// ordered by id. Without a new snapshot it does nothing.
func (r *Registry) Reconcile() []PlayingSoundEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.published
	r.published = nil
	if snapshot == nil {
		return nil
	}
	if snapshot.Acked > r.acked {
		r.acked = snapshot.Acked
	}

	live := make(map[SoundInstanceID]struct{}, len(snapshot.Playing))
	for _, id := range snapshot.Playing {
		live[id] = struct{}{}
	}

	var ended []PlayingSoundEntry
	for id, entry := range r.entries {
		if _, ok := live[id]; ok || id > r.acked {
			continue
		}
		ended = append(ended, entry)
		delete(r.entries, id)
	}

	slices.SortFunc(ended, func(a, b PlayingSoundEntry) int {
		return cmp.Compare(a.ID, b.ID)
	})

	if len(ended) > 0 {
		slog.Debug("registry reconciled", "ended", len(ended), "live", len(r.entries), "acked", r.acked)
	}
	return ended
}

// IsPlaying reports whether id is pending or still mixing as of the last reconcile
func (r *Registry) IsPlaying(id SoundInstanceID) bool {
	if id == InvalidID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Entry returns the record for id
func (r *Registry) Entry(id SoundInstanceID) (PlayingSoundEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of live entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns the live entries ordered by id
func (r *Registry) Entries() []PlayingSoundEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]PlayingSoundEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b PlayingSoundEntry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}
