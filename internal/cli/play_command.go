package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soundstage.dev/internal/audio"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/spatial"
)

const pumpInterval = 10 * time.Millisecond

// newDevicesCommand creates the devices command
func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List output devices of the configured backend",
		Args:  cobra.NoArgs,
		RunE:  runDevices,
	}
}

func runDevices(cmd *cobra.Command, args []string) error {
	cli, err := cliFromContext(cmd.Context())
	if err != nil {
		return err
	}

	cfg, err := cli.prepare(cmd)
	if err != nil {
		return err
	}

	factory := cli.newOutputFactory(output.FactoryOptions{RecordPath: cfg.RecordPath})
	device, err := factory.CreateDevice(cfg.AudioBackend)
	if err != nil {
		return fmt.Errorf("failed to create audio backend '%s': %w", cfg.AudioBackend, err)
	}
	defer device.Close()

	devices, err := audio.New(device).GetAudioDevices()
	if err != nil {
		return err
	}

	printDevices(cmd.OutOrStdout(), device.Name(), devices)
	return nil
}

func printDevices(w io.Writer, backend string, devices []output.DeviceInfo) {
	fmt.Fprintf(w, "Backend: %s\n", backend)
	for _, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Fprintf(w, "  %d: %s%s\n", d.Index, d.Name, marker)
	}
}

// newPlayCommand creates the play command
func newPlayCommand() *cobra.Command {
	var (
		gain     float64
		pan      float64
		at       string
		rangeM   float64
		group    string
		ui       bool
		loop     bool
		device   int
		duration time.Duration
	)

	playCmd := &cobra.Command{
		Use:   "play <file|cue>",
		Short: "Play a sound and wait for it to finish",
		Long: `Play a sound file, or a cue from the configured bank, and wait for it to finish.

Examples:
  soundstage play door.wav
  soundstage play click --ui --pan -0.5
  soundstage play step.wav --at 3,0,-2 --range 20
  soundstage play rain.mp3 --loop --duration 10s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pos *spatial.Vec3
			if at != "" {
				v, err := parseVec3(at)
				if err != nil {
					return err
				}
				pos = &v
			}

			flags := cmd.Flags()
			adjust := func(req *playRequest) {
				if flags.Changed("gain") {
					req.volume = gain
				}
				if flags.Changed("pan") {
					req.pan = pan
				}
				if flags.Changed("group") {
					req.group = group
				}
				if ui {
					req.ui = true
				}
				if loop {
					req.loop = true
				}
				req.at = pos
				req.rangeM = rangeM
			}
			return runPlay(cmd, args[0], adjust, device, duration)
		},
	}

	playCmd.Flags().Float64Var(&gain, "gain", 1, "Sound volume (0.0 to 1.0)")
	playCmd.Flags().Float64Var(&pan, "pan", 0, "Stereo pan (-1.0 left to 1.0 right)")
	playCmd.Flags().StringVar(&at, "at", "", "World position x,y,z for a positional sound")
	playCmd.Flags().Float64Var(&rangeM, "range", 0, "Distance at which a positional sound becomes silent (0 = no falloff)")
	playCmd.Flags().StringVar(&group, "group", "", "Volume group (default sfx)")
	playCmd.Flags().BoolVar(&ui, "ui", false, "Play as a UI sound")
	playCmd.Flags().BoolVar(&loop, "loop", false, "Loop until --duration elapses or interrupted")
	playCmd.Flags().IntVar(&device, "device", -1, "Output device index (-1 = configured default)")
	playCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 = until the sound ends)")

	return playCmd
}

func runPlay(cmd *cobra.Command, name string, adjust func(*playRequest), device int, duration time.Duration) error {
	slog.Debug("running play command", "name", name, "device", device, "duration", duration)

	cli, err := cliFromContext(cmd.Context())
	if err != nil {
		return err
	}

	cfg, err := cli.prepare(cmd)
	if err != nil {
		return err
	}

	s, err := cli.openSession(cfg, device)
	if err != nil {
		return err
	}
	defer s.close()

	h, c, err := s.play(name, adjust)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	progress := cli.isInteractive(out)
	if progress {
		fmt.Fprintf(out, "Playing %s (%s)", c.Name(), c.Duration().Round(time.Millisecond))
	}

	started := cli.now()
	err = s.waitFor(cmd.Context(), duration, func() bool { return !h.IsPlaying() }, func() {
		if progress {
			fmt.Fprint(out, ".")
		}
	})
	if progress {
		fmt.Fprintln(out)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "played %s (id %d, %s)\n", name, h.ID(), cli.now().Sub(started).Round(time.Millisecond))
	return nil
}

// newMusicCommand creates the music command
func newMusicCommand() *cobra.Command {
	var (
		track int
		fade  time.Duration
		hold  time.Duration
		loop  bool
	)

	musicCmd := &cobra.Command{
		Use:   "music <file|cue>...",
		Short: "Play music on a track, crossfading between pieces",
		Long: `Play one or more pieces of music on a track. Each piece replaces the previous one
after --hold, which fades out while the new piece fades in.

Examples:
  soundstage music theme.mp3
  soundstage music calm.ogg battle.mp3 --hold 20s --fade 2s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMusic(cmd, args, track, fade, hold, loop)
		},
	}

	musicCmd.Flags().IntVar(&track, "track", 0, "Music track")
	musicCmd.Flags().DurationVar(&fade, "fade", 0, "Fade-in of each piece (0 = configured crossfade)")
	musicCmd.Flags().DurationVar(&hold, "hold", 0, "How long each piece plays before the next (0 = until it ends)")
	musicCmd.Flags().BoolVar(&loop, "loop", false, "Loop each piece; requires --hold")

	return musicCmd
}

func runMusic(cmd *cobra.Command, names []string, track int, fade, hold time.Duration, loop bool) error {
	slog.Debug("running music command", "pieces", len(names), "track", track, "fade", fade, "hold", hold)

	if track < 0 {
		return fmt.Errorf("track must be >= 0, got %d", track)
	}
	if loop && hold <= 0 {
		return fmt.Errorf("--loop requires --hold")
	}

	cli, err := cliFromContext(cmd.Context())
	if err != nil {
		return err
	}

	cfg, err := cli.prepare(cmd)
	if err != nil {
		return err
	}

	s, err := cli.openSession(cfg, -1)
	if err != nil {
		return err
	}
	defer s.close()

	if fade <= 0 {
		fade = time.Duration(cfg.MusicCrossfadeMS) * time.Millisecond
	}

	out := cmd.OutOrStdout()
	for _, name := range names {
		h, _, err := s.play(name, func(req *playRequest) {
			req.music = true
			req.track = track
			req.fade = fade
			req.loop = req.loop || loop
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "track %d: %s (id %d)\n", track, name, h.ID())

		if err := s.waitFor(cmd.Context(), hold, func() bool { return !h.IsPlaying() }, nil); err != nil {
			return err
		}
	}

	if err := s.facade.StopMusic(track, fade); err != nil {
		return err
	}

	// Let fades run out
	return s.waitFor(cmd.Context(), 0, func() bool { return len(s.facade.Playing()) == 0 }, nil)
}

// waitFor pumps the facade until done reports true or limit (0 = none) passes.
// A cancelled ctx ends the wait with its error.
func (s *session) waitFor(ctx context.Context, limit time.Duration, done func() bool, tick func()) error {
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		s.facade.Pump()
		if done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
			if tick != nil {
				tick()
			}
		}
	}
}

// parseVec3 parses "x,y,z"
func parseVec3(s string) (spatial.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return spatial.Vec3{}, fmt.Errorf("invalid position '%s', want x,y,z", s)
	}
	var v [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return spatial.Vec3{}, fmt.Errorf("invalid position '%s': %w", s, err)
		}
		v[i] = f
	}
	return spatial.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}
