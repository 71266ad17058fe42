package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrCueNotFound is returned when a bank has no cue with the requested name
var ErrCueNotFound = errors.New("cue not found")

// Cue describes a named sound: which file to play and how
type Cue struct {
	Name   string  `yaml:"-"`
	File   string  `yaml:"file"`
	Group  string  `yaml:"group"`
	Volume float64 `yaml:"volume"`
	Pan    float64 `yaml:"pan"`
	Loop   bool    `yaml:"loop"`
	Music  bool    `yaml:"music"`
	Track  int     `yaml:"track"`
	FadeMS int     `yaml:"fade_ms"`
}

// Fade returns the cue's fade time
func (c Cue) Fade() time.Duration {
	return time.Duration(c.FadeMS) * time.Millisecond
}

// bankFile is the on-disk YAML layout
type bankFile struct {
	Cues map[string]Cue `yaml:"cues"`
}

// Bank is a set of cues loaded from a YAML file. Relative cue files resolve against the bank's directory.
type Bank struct {
	dir  string
	cues map[string]Cue
}

// LoadBank reads and validates a YAML cue bank
func LoadBank(fs afero.Fs, path string) (*Bank, error) {
	slog.Debug("loading cue bank", "path", path)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		slog.Error("failed to read cue bank", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read cue bank: %w", err)
	}

	bank, err := ParseBank(data, filepath.Dir(path))
	if err != nil {
		slog.Error("failed to parse cue bank", "path", path, "error", err)
		return nil, err
	}

	slog.Info("cue bank loaded", "path", path, "cues", len(bank.cues))
	return bank, nil
}

// ParseBank decodes YAML bank content; dir is used to resolve relative files
func ParseBank(data []byte, dir string) (*Bank, error) {
	var raw bankFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cue bank YAML: %w", err)
	}

	var problems []string
	cues := make(map[string]Cue, len(raw.Cues))
	for name, cue := range raw.Cues {
		cue.Name = name
		if cue.File == "" {
			problems = append(problems, fmt.Sprintf("cue %q has no file", name))
		}
		if cue.Volume == 0 {
			cue.Volume = 1
		}
		if cue.Volume < 0 || cue.Volume > 1 {
			problems = append(problems, fmt.Sprintf("cue %q volume must be between 0.0 and 1.0, got %f", name, cue.Volume))
		}
		if cue.Pan < -1 || cue.Pan > 1 {
			problems = append(problems, fmt.Sprintf("cue %q pan must be between -1.0 and 1.0, got %f", name, cue.Pan))
		}
		if cue.Track < 0 {
			problems = append(problems, fmt.Sprintf("cue %q track must be >= 0, got %d", name, cue.Track))
		}
		if cue.FadeMS < 0 {
			problems = append(problems, fmt.Sprintf("cue %q fade_ms must be >= 0, got %d", name, cue.FadeMS))
		}
		cues[name] = cue
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("cue bank validation failed: %s", strings.Join(problems, "; "))
	}

	return &Bank{dir: dir, cues: cues}, nil
}

// Cue looks up a cue by name
func (b *Bank) Cue(name string) (Cue, error) {
	cue, ok := b.cues[name]
	if !ok {
		return Cue{}, fmt.Errorf("%w: %s", ErrCueNotFound, name)
	}
	return cue, nil
}

// Names returns all cue names in sorted order
func (b *Bank) Names() []string {
	names := make([]string, 0, len(b.cues))
	for name := range b.cues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path resolves a cue's file against the bank directory
func (b *Bank) Path(cue Cue) string {
	if filepath.IsAbs(cue.File) || b.dir == "" {
		return cue.File
	}
	return filepath.Join(b.dir, cue.File)
}

// Resolve loads the clip for the best cue matching name, following its fallback chain
func (b *Bank) Resolve(loader *Loader, name string) (*Clip, Cue, error) {
	cue, _, err := b.Match(name)
	if err != nil {
		return nil, Cue{}, err
	}
	c, err := loader.Load(b.Path(cue))
	if err != nil {
		return nil, cue, err
	}
	return c, cue, nil
}
