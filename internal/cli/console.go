package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"soundstage.dev/internal/audio"
	"soundstage.dev/internal/config"
	"soundstage.dev/internal/spatial"
)

const consoleHelp = `Commands:
  play <sound> [gain]             play a world sound in the sfx group
  ui <sound> [pan]                play a UI sound
  at <sound> <x> <y> <z> [range]  play a positional sound
  music <sound> [track] [fade_ms] play music, crossfading the track
  stop <id> [fade_ms]             stop a sound started from this console
  stopmusic <track> [fade_ms]     stop a music track
  stopall [fade_ms]               stop every sound and music track
  group <name> <gain>             set a group volume (master included)
  listener <x> <y> <z>            move the listener
  devices                         list output devices
  output <index>                  switch output device
  status                          show playing sounds and music tracks
  help                            show this help
  quit                            leave the console`

var errQuit = errors.New("quit")

// newConsoleCommand creates the interactive console command
func newConsoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive prompt driving the audio engine",
		Args:  cobra.NoArgs,
		RunE:  runConsole,
	}
}

// console executes prompt lines against a session. Handles started here are
// remembered so they can be stopped by id.
type console struct {
	s       *session
	out     io.Writer
	handles map[audio.SoundInstanceID]audio.Handle
}

func newConsole(s *session, out io.Writer) *console {
	return &console{s: s, out: out, handles: make(map[audio.SoundInstanceID]audio.Handle)}
}

func runConsole(cmd *cobra.Command, args []string) error {
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

	interactive := cli.isInteractive(cmd.OutOrStdout())
	rlConfig := &readline.Config{
		Prompt:          "soundstage> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
		FuncIsTerminal:  func() bool { return interactive },
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("play"), readline.PcItem("ui"), readline.PcItem("at"),
			readline.PcItem("music"), readline.PcItem("stop"), readline.PcItem("stopmusic"),
			readline.PcItem("stopall"), readline.PcItem("group"), readline.PcItem("listener"),
			readline.PcItem("devices"), readline.PcItem("output"), readline.PcItem("status"),
			readline.PcItem("help"), readline.PcItem("quit"),
		),
	}
	if !interactive {
		// Scripted input: leave the controlling terminal alone
		rlConfig.FuncMakeRaw = func() error { return nil }
		rlConfig.FuncExitRaw = func() error { return nil }
	}

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	c := newConsole(s, rl.Stdout())

	var watcher *config.Watcher
	if path := cli.configPath(cmd); path != "" {
		watcher, err = config.NewWatcher(cli.configManager, path, config.DefaultDebounce)
		if err != nil {
			slog.Warn("config hot reload unavailable", "path", path, "error", err)
		} else {
			defer watcher.Close()
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.background(stop, watcher)
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	fmt.Fprintln(rl.Stdout(), "Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := c.execute(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(rl.Stdout(), "error: %v\n", err)
		}
	}
}

// background pumps the facade and applies config reloads until stop is closed
func (c *console) background(stop <-chan struct{}, watcher *config.Watcher) {
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	var configs <-chan *config.Config
	if watcher != nil {
		configs = watcher.Configs
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.s.facade.Pump()
		case cfg, ok := <-configs:
			if !ok {
				configs = nil
				continue
			}
			c.s.applyVolumes(c.s.cfg, cfg)
			slog.Info("config change applied", "master_volume", cfg.MasterVolume, "groups", len(cfg.GroupVolumes))
		}
	}
}

// execute runs one prompt line
func (c *console) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "play":
		if err := wantArgs(args, 1, 2); err != nil {
			return err
		}
		return c.start(args[0], func(req *playRequest) {
			if len(args) > 1 {
				req.volume = floatOr(args[1], req.volume)
			}
		})
	case "ui":
		if err := wantArgs(args, 1, 2); err != nil {
			return err
		}
		return c.start(args[0], func(req *playRequest) {
			req.ui = true
			if len(args) > 1 {
				req.pan = floatOr(args[1], req.pan)
			}
		})
	case "at":
		if err := wantArgs(args, 4, 5); err != nil {
			return err
		}
		pos, err := parseVec3(strings.Join(args[1:4], ","))
		if err != nil {
			return err
		}
		return c.start(args[0], func(req *playRequest) {
			req.at = &pos
			if len(args) > 4 {
				req.rangeM = floatOr(args[4], 0)
			}
		})
	case "music":
		if err := wantArgs(args, 1, 3); err != nil {
			return err
		}
		track, fade := 0, time.Duration(0)
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid track '%s'", args[1])
			}
			track = n
		}
		if len(args) > 2 {
			d, err := parseMillis(args[2])
			if err != nil {
				return err
			}
			fade = d
		}
		return c.start(args[0], func(req *playRequest) {
			req.music = true
			req.track = track
			if len(args) > 2 {
				req.fade = fade
			}
		})
	case "stop":
		if err := wantArgs(args, 1, 2); err != nil {
			return err
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sound id '%s'", args[0])
		}
		h, ok := c.handles[audio.SoundInstanceID(id)]
		if !ok {
			return fmt.Errorf("no sound %d started from this console", id)
		}
		fade, err := optionalMillis(args, 1)
		if err != nil {
			return err
		}
		h.Stop(fade)
		delete(c.handles, h.ID())
		return nil
	case "stopmusic":
		if err := wantArgs(args, 1, 2); err != nil {
			return err
		}
		track, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid track '%s'", args[0])
		}
		fade, err := optionalMillis(args, 1)
		if err != nil {
			return err
		}
		return c.s.facade.StopMusic(track, fade)
	case "stopall":
		if err := wantArgs(args, 0, 1); err != nil {
			return err
		}
		fade, err := optionalMillis(args, 0)
		if err != nil {
			return err
		}
		for id, h := range c.handles {
			h.Stop(fade)
			delete(c.handles, id)
		}
		return c.s.facade.StopAllMusic(fade)
	case "group":
		if err := wantArgs(args, 2, 2); err != nil {
			return err
		}
		gain, err := strconv.ParseFloat(args[1], 64)
		if err != nil || gain < 0 {
			return fmt.Errorf("invalid gain '%s'", args[1])
		}
		return c.s.facade.SetGroupVolume(args[0], gain)
	case "listener":
		if err := wantArgs(args, 3, 3); err != nil {
			return err
		}
		pos, err := parseVec3(strings.Join(args, ","))
		if err != nil {
			return err
		}
		listener := spatial.DefaultListener()
		listener.Position = pos
		return c.s.facade.SetListener(listener)
	case "devices":
		devices, err := c.s.facade.GetAudioDevices()
		if err != nil {
			return err
		}
		printDevices(c.out, c.s.device.Name(), devices)
		return nil
	case "output":
		if err := wantArgs(args, 1, 1); err != nil {
			return err
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid device index '%s'", args[0])
		}
		if err := c.s.facade.StartPlayback(index); err != nil {
			return err
		}
		c.s.output = index
		return nil
	case "status":
		c.status()
		return nil
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command '%s', type 'help'", name)
	}
}

func (c *console) start(name string, adjust func(*playRequest)) error {
	h, _, err := c.s.play(name, adjust)
	if err != nil {
		return err
	}
	c.handles[h.ID()] = h
	fmt.Fprintf(c.out, "started %d\n", h.ID())
	return nil
}

func (c *console) status() {
	// Forget handles of sounds that have finished
	for id, h := range c.handles {
		if !h.IsPlaying() {
			delete(c.handles, id)
		}
	}

	entries := c.s.facade.Playing()
	fmt.Fprintf(c.out, "output %d, %d playing\n", c.s.output, len(entries))
	for _, e := range entries {
		fmt.Fprintf(c.out, "  %d  %-6s %-6s %s\n", e.ID, e.Kind, e.Group, e.Clip)
	}

	slots := c.s.facade.MusicTracks()
	slices.SortFunc(slots, func(a, b audio.MusicSlot) int { return a.Track - b.Track })
	for _, slot := range slots {
		fmt.Fprintf(c.out, "  track %d: %s (occupant %d, retiring %d)\n",
			slot.Track, slot.State, slot.Occupant.ID(), len(slot.Retiring))
	}
}

func wantArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("expected %d arguments, got %d", lo, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

// floatOr parses s, returning fallback when it is not a number
func floatOr(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.Atoi(s)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid milliseconds '%s'", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func optionalMillis(args []string, i int) (time.Duration, error) {
	if len(args) <= i {
		return 0, nil
	}
	return parseMillis(args[i])
}
