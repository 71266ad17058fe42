package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"soundstage.dev/internal/audio"
	"soundstage.dev/internal/clip"
	"soundstage.dev/internal/config"
	"soundstage.dev/internal/output"
	"soundstage.dev/internal/spatial"
	"soundstage.dev/internal/tracking"
)

// session is a running facade with an open output, plus the clip sources commands play from
type session struct {
	cfg     *config.Config
	device  output.Device
	facade  *audio.Facade
	loader  *clip.Loader
	bank    *clip.Bank
	journal *tracking.Journal
	output  int
	now     func() time.Time
}

// openSession creates the output device, starts the facade and opens output deviceIndex (-1 = default)
func (c *CLI) openSession(cfg *config.Config, deviceIndex int) (*session, error) {
	factory := c.newOutputFactory(output.FactoryOptions{
		BufferFrames: cfg.SampleRate * cfg.BufferMS / 1000,
		RecordPath:   cfg.RecordPath,
	})

	device, err := factory.CreateDevice(cfg.AudioBackend)
	if err != nil {
		slog.Error("failed to create output device", "backend", cfg.AudioBackend, "error", err)
		return nil, fmt.Errorf("failed to create audio backend '%s': %w", cfg.AudioBackend, err)
	}

	s := &session{
		cfg:    cfg,
		device: device,
		loader: clip.NewLoaderWithFilesystem(c.fsFactory.ReadOnly(), nil),
		now:    c.now,
	}

	if cfg.BankPath != "" {
		bankPath := c.configManager.ResolveBankPath(cfg.BankPath)
		bank, err := clip.LoadBank(c.fsFactory.ReadOnly(), bankPath)
		if err != nil {
			device.Close()
			return nil, err
		}
		s.bank = bank
	}

	opts := []audio.Option{
		audio.WithConfig(audio.Config{
			Format:         output.Format{SampleRate: cfg.SampleRate, Channels: 2},
			MusicCrossfade: time.Duration(cfg.MusicCrossfadeMS) * time.Millisecond,
		}),
		audio.WithClock(c.now),
		audio.WithHook(tracking.NewSlogHook(nil).Hook()),
	}

	c.initializeTracking(cfg)
	if c.trackingDB != nil {
		journal, err := tracking.NewJournal(c.trackingDB, device.Name(), c.now())
		if err != nil {
			slog.Warn("playback journal unavailable", "error", err)
		} else {
			s.journal = journal
			opts = append(opts, audio.WithHook(journal.Hook()))
		}
	}

	s.facade = audio.New(device, opts...)
	if err := s.facade.Init(); err != nil {
		s.close()
		return nil, err
	}

	if deviceIndex < 0 {
		deviceIndex = cfg.Device
	}
	if deviceIndex < 0 {
		deviceIndex, err = defaultDevice(s.facade)
		if err != nil {
			s.close()
			return nil, err
		}
	}

	if err := s.facade.StartPlayback(deviceIndex); err != nil {
		s.close()
		return nil, err
	}
	s.output = deviceIndex

	s.applyVolumes(nil, cfg)

	slog.Info("audio session started", "backend", device.Name(), "device", deviceIndex)
	return s, nil
}

// defaultDevice picks the device marked default, or the first one
func defaultDevice(f *audio.Facade) (int, error) {
	devices, err := f.GetAudioDevices()
	if err != nil {
		return 0, err
	}
	if len(devices) == 0 {
		return 0, fmt.Errorf("%w: no output devices", audio.ErrDeviceUnavailable)
	}
	for _, d := range devices {
		if d.IsDefault {
			return d.Index, nil
		}
	}
	return devices[0].Index, nil
}

// applyVolumes pushes group and master gains that differ from prev. Groups dropped from
// the new config go back to unity gain.
func (s *session) applyVolumes(prev, next *config.Config) {
	if prev == nil || prev.MasterVolume != next.MasterVolume {
		s.setGroup(audio.GroupMaster, next.MasterVolume)
	}

	for group, gain := range next.GroupVolumes {
		if prev != nil {
			if old, ok := prev.GroupVolumes[group]; ok && old == gain {
				continue
			}
		}
		s.setGroup(group, gain)
	}

	if prev != nil {
		for group := range prev.GroupVolumes {
			if _, ok := next.GroupVolumes[group]; !ok {
				s.setGroup(group, 1)
			}
		}
	}

	s.cfg = next
}

func (s *session) setGroup(group string, gain float64) {
	if err := s.facade.SetGroupVolume(group, gain); err != nil {
		slog.Warn("failed to set group volume", "group", group, "error", err)
		return
	}
	slog.Debug("group volume applied", "group", group, "gain", gain)
}

// resolve returns the clip for name. An exact cue wins, then a readable file,
// then the closest cue in the name's fallback chain.
func (s *session) resolve(name string) (*clip.Clip, clip.Cue, error) {
	if s.bank != nil {
		if _, err := s.bank.Cue(name); err == nil {
			return s.bank.Resolve(s.loader, name)
		}
	}

	c, loadErr := s.loader.Load(name)
	if loadErr == nil {
		return c, clip.Cue{Name: name, File: name, Volume: 1}, nil
	}

	if s.bank != nil {
		c, cue, err := s.bank.Resolve(s.loader, name)
		if err == nil {
			return c, cue, nil
		}
		if !errors.Is(err, clip.ErrCueNotFound) {
			return nil, clip.Cue{}, err
		}
	}
	return nil, clip.Cue{}, loadErr
}

// playRequest describes one sound to start
type playRequest struct {
	group  string
	volume float64
	pan    float64
	at     *spatial.Vec3
	rangeM float64
	loop   bool
	ui     bool
	music  bool
	track  int
	fade   time.Duration
}

// play resolves name and starts it. The request starts from the cue's settings;
// adjust, when set, applies command line overrides on top.
func (s *session) play(name string, adjust func(*playRequest)) (audio.Handle, *clip.Clip, error) {
	c, cue, err := s.resolve(name)
	if err != nil {
		return audio.Handle{}, nil, err
	}

	req := playRequest{
		group:  cue.Group,
		volume: cue.Volume,
		pan:    cue.Pan,
		loop:   cue.Loop,
		ui:     cue.Group == audio.GroupUI,
		music:  cue.Music,
		track:  cue.Track,
		fade:   cue.Fade(),
	}
	if adjust != nil {
		adjust(&req)
	}

	var h audio.Handle
	switch {
	case req.music:
		h, err = s.facade.PlayMusic(c, req.track, req.fade, req.loop)
		if err == nil && req.volume != 1 {
			h.SetGain(req.volume)
		}
	case req.ui:
		h, err = s.facade.PlayUI(c, req.volume, req.pan, req.loop)
	default:
		group := req.group
		if group == "" {
			group = audio.GroupSFX
		}
		pos := spatial.MakeFixed()
		if req.at != nil {
			pos = spatial.MakePositional(*req.at, req.rangeM)
		} else if req.pan != 0 {
			pos = spatial.MakeUI(req.pan)
		}
		h, err = s.facade.PlayInGroup(c, group, pos, req.volume, req.loop)
	}
	if err != nil {
		return audio.Handle{}, nil, err
	}

	slog.Debug("sound started", "sound_id", h.ID(), "name", name, "music", req.music, "track", req.track)
	return h, c, nil
}

// close stops the facade and releases the device and journal
func (s *session) close() {
	if s.facade != nil {
		s.facade.DeInit()
	}
	if err := s.device.Close(); err != nil {
		slog.Warn("failed to close output device", "error", err)
	}
	if s.journal != nil {
		if err := s.journal.Close(s.now()); err != nil {
			slog.Warn("failed to close playback journal", "error", err)
		}
	}
}
