package audio

import (
	"log/slog"
	"time"
)

// run is the audio goroutine: execute queued commands, mix into the attached
// stream, report what is playing, then sleep until woken or the interval passes.
func (f *Facade) run(queue *CommandQueue, registry *Registry) {
	defer f.wg.Done()

	slog.Debug("audio goroutine started", "loop_interval", f.loopInterval)
	ticker := time.NewTicker(f.loopInterval)
	defer ticker.Stop()

	for {
		queue.Drain(f.execute)
		f.mix()
		registry.Publish(Snapshot{Playing: f.engine.Playing(), Acked: f.acked})

		if !f.running() {
			slog.Debug("audio goroutine exiting")
			return
		}

		select {
		case <-queue.Wake():
		case <-ticker.C:
		}
	}
}

// execute applies one command to the engine. Failures are logged, never returned.
func (f *Facade) execute(cmd Command) {
	switch c := cmd.(type) {
	case StartInstance:
		if err := f.engine.Start(c); err != nil {
			slog.Error("failed to start sound", "sound_id", c.ID, "clip", c.Clip.Name(), "error", err)
		}
		if c.ID > f.acked {
			f.acked = c.ID
		}
	case StopInstance:
		f.engine.Stop(c.ID)
	case SetGain:
		f.engine.SetGain(c.ID, c.Gain)
	case SetPan:
		f.engine.SetPan(c.ID, c.Pan)
	case SetPosition:
		f.engine.SetPosition(c.ID, c.Position)
	case FadeInstance:
		f.engine.Fade(c.ID, c.Target, c.Duration, c.StopAtEnd)
	case SetGroupVolume:
		f.engine.SetGroupVolume(c.Group, c.Gain)
	case SetListener:
		f.engine.SetListener(c.Listener)
	case AttachOutput:
		f.closeStream()
		f.stream = c.Stream
		if got := c.Stream.Format(); got != f.config.Format {
			slog.Warn("output format differs from engine format",
				"engine_rate", f.config.Format.SampleRate,
				"output_rate", got.SampleRate)
		}
		slog.Info("output attached", "device", c.Device)
	case DetachOutput:
		f.closeStream()
	default:
		slog.Warn("unknown command ignored", "command", cmd.Kind().String())
	}
}

// mix renders up to MaxBlocks blocks into the stream. A block shrinks to the
// room the stream has, so outputs buffering less than one block still advance.
func (f *Facade) mix() {
	if f.stream == nil {
		return
	}

	for i := 0; i < f.config.MaxBlocks; i++ {
		n := min(f.stream.Free(), len(f.block))
		if n <= 0 {
			return
		}
		frames := f.block[:n]
		f.engine.Mix(frames)
		if _, err := f.stream.Write(frames); err != nil {
			slog.Error("output write failed, detaching", "error", err)
			f.closeStream()
			return
		}
	}
}

func (f *Facade) closeStream() {
	if f.stream == nil {
		return
	}
	if err := f.stream.Close(); err != nil {
		slog.Error("failed to close output stream", "error", err)
	}
	f.stream = nil
	slog.Info("output detached")
}
