package clip

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultCue is tried last when no cue in a name's fallback chain exists
const DefaultCue = "default"

// FallbackChain lists the cue names tried for name, most specific first.
// "Footstep/Stone Floor/left" yields the name itself, then
// "footstep/stone-floor/left", "footstep/stone-floor", "footstep" and DefaultCue.
func FallbackChain(name string) []string {
	chain := []string{name}
	seen := map[string]bool{name: true}
	add := func(candidate string) {
		if candidate != "" && !seen[candidate] {
			seen[candidate] = true
			chain = append(chain, candidate)
		}
	}

	var parts []string
	for _, part := range strings.Split(name, "/") {
		if n := normalizeCueName(part); n != "" {
			parts = append(parts, n)
		}
	}
	for i := len(parts); i > 0; i-- {
		add(strings.Join(parts[:i], "/"))
	}
	add(DefaultCue)
	return chain
}

// Match finds the most specific cue for name. level is the index into
// FallbackChain(name) of the cue that matched; 0 means an exact hit.
func (b *Bank) Match(name string) (cue Cue, level int, err error) {
	chain := FallbackChain(name)
	for i, candidate := range chain {
		if c, ok := b.cues[candidate]; ok {
			if i > 0 {
				slog.Debug("cue resolved through fallback", "requested", name, "cue", candidate, "level", i)
			}
			return c, i, nil
		}
	}
	return Cue{}, -1, fmt.Errorf("%w: %s (tried %s)", ErrCueNotFound, name, strings.Join(chain, ", "))
}

// normalizeCueName lowercases a name segment and turns separators and
// punctuation into single hyphens.
func normalizeCueName(name string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
