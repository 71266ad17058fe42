package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func track(r *Registry, ids ...SoundInstanceID) {
	for _, id := range ids {
		r.Track(PlayingSoundEntry{ID: id, Clip: "clip", Track: -1})
	}
}

func TestRegistryKeepsPendingEntries(t *testing.T) {
	r := NewRegistry()
	track(r, 1, 2, 3)

	// only 1 has been started so far and it is already gone
	r.Publish(Snapshot{Playing: nil, Acked: 1})
	ended := r.Reconcile()

	assert.Len(t, ended, 1)
	assert.Equal(t, SoundInstanceID(1), ended[0].ID)
	assert.False(t, r.IsPlaying(1))
	assert.True(t, r.IsPlaying(2), "unacknowledged ids stay live")
	assert.True(t, r.IsPlaying(3))
}

func TestRegistryReclaimsFinishedIDs(t *testing.T) {
	r := NewRegistry()
	track(r, 1, 2, 3)

	r.Publish(Snapshot{Playing: []SoundInstanceID{1, 2, 3}, Acked: 3})
	assert.Empty(t, r.Reconcile())
	assert.Equal(t, 3, r.Len())

	r.Publish(Snapshot{Playing: []SoundInstanceID{2}, Acked: 3})
	ended := r.Reconcile()

	var ids []SoundInstanceID
	for _, e := range ended {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []SoundInstanceID{1, 3}, ids, "ended entries come back ordered by id")
	assert.Equal(t, 1, r.Len())

	entries := r.Entries()
	assert.Equal(t, SoundInstanceID(2), entries[0].ID)
}

func TestRegistryReconcileIsIdempotent(t *testing.T) {
	r := NewRegistry()
	track(r, 1, 2)
	r.Publish(Snapshot{Playing: []SoundInstanceID{2}, Acked: 2})

	first := r.Reconcile()
	assert.Len(t, first, 1)
	before := r.Entries()

	assert.Empty(t, r.Reconcile(), "nothing published, nothing changes")
	assert.Empty(t, r.Reconcile())
	assert.Equal(t, before, r.Entries())

	// republishing the same view changes nothing either
	r.Publish(Snapshot{Playing: []SoundInstanceID{2}, Acked: 2})
	assert.Empty(t, r.Reconcile())
	assert.Equal(t, before, r.Entries())
}

func TestRegistryAckNeverMovesBackwards(t *testing.T) {
	r := NewRegistry()
	track(r, 5)
	r.Publish(Snapshot{Acked: 4})
	r.Reconcile()
	r.Publish(Snapshot{Acked: 2})
	r.Reconcile()
	assert.True(t, r.IsPlaying(5))

	r.Publish(Snapshot{Acked: 5})
	r.Reconcile()
	assert.False(t, r.IsPlaying(5))
}

func TestRegistryInvalidID(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.IsPlaying(InvalidID))
	_, ok := r.Entry(InvalidID)
	assert.False(t, ok)
}
