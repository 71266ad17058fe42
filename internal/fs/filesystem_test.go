package fs

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFactory(t *testing.T) {
	factory := NewDefaultFactory()
	require.NotNil(t, factory)

	_, ok := factory.Production().(*afero.OsFs)
	assert.True(t, ok, "production filesystem is *afero.OsFs")

	_, ok = factory.Memory().(*afero.MemMapFs)
	assert.True(t, ok, "memory filesystem is *afero.MemMapFs")

	_, ok = factory.ReadOnly().(*afero.ReadOnlyFs)
	assert.True(t, ok, "read-only filesystem is *afero.ReadOnlyFs")
}

func TestMemoryFilesystemIsolation(t *testing.T) {
	factory := NewDefaultFactory()
	memFS1 := factory.Memory()
	memFS2 := factory.Memory()

	require.NoError(t, afero.WriteFile(memFS1, "/bank.yaml", []byte("cues: {}"), 0644))

	exists, err := afero.Exists(memFS2, "/bank.yaml")
	require.NoError(t, err)
	assert.False(t, exists, "memory filesystems must not share files")
}

func TestMemoryFactorySharesFiles(t *testing.T) {
	factory := NewMemoryFactory()
	require.NoError(t, afero.WriteFile(factory.Memory(), "/sounds/click.wav", []byte("RIFF"), 0644))

	data, err := afero.ReadFile(factory.ReadOnly(), "/sounds/click.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)

	exists, err := afero.Exists(factory.Production(), "/sounds/click.wav")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	factory := NewMemoryFactory()

	err := afero.WriteFile(factory.ReadOnly(), "/out.wav", []byte("x"), 0644)
	assert.Error(t, err)
}
