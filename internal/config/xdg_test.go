package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXDGPathsUseAppDirectory(t *testing.T) {
	x := NewXDGDirsWithFilesystem(afero.NewMemMapFs())

	configPaths := x.GetConfigPaths("config.json")
	require.NotEmpty(t, configPaths)
	for _, p := range configPaths {
		assert.True(t, strings.HasSuffix(p, filepath.Join("soundstage", "config.json")), p)
	}

	assert.True(t, strings.HasSuffix(x.GetCachePath("logs"), filepath.Join("soundstage", "logs")))
	assert.True(t, strings.HasSuffix(x.GetCachePath(""), "soundstage"))
}

func TestCreateCacheDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	x := NewXDGDirsWithFilesystem(fs)

	require.NoError(t, x.CreateCacheDir("logs"))
	exists, err := afero.DirExists(fs, x.GetCachePath("logs"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFindDataFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	x := NewXDGDirsWithFilesystem(fs)

	userDir := x.GetDataPaths()[0]
	want := filepath.Join(userDir, "banks", "game.yaml")
	require.NoError(t, afero.WriteFile(fs, want, []byte("cues: {}"), 0644))

	assert.Equal(t, want, x.FindDataFile("banks/game.yaml"))
	assert.Equal(t, "", x.FindDataFile("banks/missing.yaml"))
	assert.Equal(t, "", x.FindDataFile("../../etc/passwd"))
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sounds/a.wav", "sounds/a.wav"},
		{"./sounds//a.wav", "sounds/a.wav"},
		{"sounds/../a.wav", "a.wav"},
		{"a\x00.wav", "a.wav"},
		{"/etc/passwd", ""},
		{"../secret", ""},
		{"a/../../secret", ""},
		{"..", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizePath(tt.in), "input %q", tt.in)
	}
}
