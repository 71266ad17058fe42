package fs

import (
	"github.com/spf13/afero"
)

// Factory provides filesystem instances for production and testing
type Factory interface {
	// Production returns a filesystem that operates on the real OS filesystem
	Production() afero.Fs
	// ReadOnly returns the OS filesystem with every write rejected, for clip and bank loading
	ReadOnly() afero.Fs
	// Memory returns an in-memory filesystem for testing
	Memory() afero.Fs
}

// DefaultFactory provides the standard filesystem factory implementation
type DefaultFactory struct{}

// NewDefaultFactory creates a new filesystem factory
func NewDefaultFactory() Factory {
	return &DefaultFactory{}
}

func (f *DefaultFactory) Production() afero.Fs {
	return afero.NewOsFs()
}

func (f *DefaultFactory) ReadOnly() afero.Fs {
	return afero.NewReadOnlyFs(afero.NewOsFs())
}

func (f *DefaultFactory) Memory() afero.Fs {
	return afero.NewMemMapFs()
}

// MemoryFactory serves one shared in-memory filesystem for every kind, so tests can seed files
// that the code under test later reads through Production or ReadOnly
type MemoryFactory struct {
	fs afero.Fs
}

// NewMemoryFactory creates a factory backed by a fresh MemMapFs
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{fs: afero.NewMemMapFs()}
}

func (f *MemoryFactory) Production() afero.Fs {
	return f.fs
}

func (f *MemoryFactory) ReadOnly() afero.Fs {
	return afero.NewReadOnlyFs(f.fs)
}

func (f *MemoryFactory) Memory() afero.Fs {
	return f.fs
}
