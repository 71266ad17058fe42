package audio

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueFIFO(t *testing.T) {
	q := NewCommandQueue()
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Enqueue(SetGain{ID: SoundInstanceID(i)}))
	}
	assert.Equal(t, 5, q.Len())

	var got []SoundInstanceID
	n := q.Drain(func(cmd Command) {
		got = append(got, cmd.(SetGain).ID)
	})

	assert.Equal(t, 5, n)
	assert.Equal(t, []SoundInstanceID{1, 2, 3, 4, 5}, got)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain(func(Command) { t.Fatal("queue should be empty") }))
}

func TestCommandQueuePerProducerOrder(t *testing.T) {
	q := NewCommandQueue()
	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(SetGroupVolume{Group: string(rune('a' + p)), Gain: float64(i)})
			}
		}(p)
	}

	seen := make(map[string]float64)
	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	check := func(cmd Command) {
		c := cmd.(SetGroupVolume)
		if last, ok := seen[c.Group]; ok && c.Gain != last+1 {
			t.Errorf("producer %s out of order: %v after %v", c.Group, c.Gain, last)
		}
		seen[c.Group] = c.Gain
		total++
	}

	for {
		select {
		case <-done:
			q.Drain(check)
			assert.Equal(t, producers*perProducer, total, "every command delivered exactly once")
			return
		case <-q.Wake():
			q.Drain(check)
		}
	}
}

func TestCommandQueueClose(t *testing.T) {
	q := NewCommandQueue()
	require.NoError(t, q.Enqueue(DetachOutput{}))

	q.Close()
	assert.True(t, q.Closed())

	err := q.Enqueue(DetachOutput{})
	assert.True(t, errors.Is(err, ErrQueueClosed))

	assert.Equal(t, 1, q.Drain(func(Command) {}), "commands queued before Close are still drained")

	select {
	case <-q.Wake():
	default:
		t.Error("Close should leave a wake signal")
	}
}

func TestCommandKindString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{StartInstance{}, "start_instance"},
		{StopInstance{}, "stop_instance"},
		{FadeInstance{}, "fade_instance"},
		{SetGroupVolume{}, "set_group_volume"},
		{AttachOutput{}, "attach_output"},
		{DetachOutput{}, "detach_output"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cmd.Kind().String())
	}
	assert.Equal(t, "unknown", CommandKind(99).String())
}
