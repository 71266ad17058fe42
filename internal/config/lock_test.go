package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveToFileOnDiskLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDependencies(afero.NewOsFs(), &fakeXDG{})
	path := filepath.Join(dir, "soundstage", "config.json")

	require.NoError(t, cm.SaveToFile(cm.GetDefaultConfig(), path))

	exists, err := afero.Exists(afero.NewOsFs(), path+".tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	loaded, err := cm.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "auto", loaded.AudioBackend)
}

func TestSaveToFileWaitsForLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cm := NewConfigManagerWithDependencies(afero.NewOsFs(), &fakeXDG{})
	cm.SetLockTimeout(50 * time.Millisecond)

	holder := flock.New(path + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	err = cm.SaveToFile(cm.GetDefaultConfig(), path)
	assert.ErrorIs(t, err, ErrConfigLocked)

	require.NoError(t, holder.Unlock())
	assert.NoError(t, cm.SaveToFile(cm.GetDefaultConfig(), path))
}

func TestAcquireLockInMemoryIsNoop(t *testing.T) {
	cm := NewConfigManagerWithFilesystem(afero.NewMemMapFs())
	lock, err := cm.acquireLock("/config.json")
	require.NoError(t, err)
	assert.NoError(t, lock.Unlock())
}
