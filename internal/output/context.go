//go:build cgo

package output

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Context owns the miniaudio context shared by every stream a MalgoDevice opens
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes miniaudio with its log routed to slog at debug level
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		slog.Error("miniaudio context unavailable", "error", err)
		return nil, err
	}
	slog.Debug("miniaudio context ready")
	return &Context{ctx: ctx}, nil
}

// Close uninitializes and frees the context; later calls do nothing
func (c *Context) Close() error {
	if c.ctx == nil {
		return nil
	}
	if err := c.ctx.Uninit(); err != nil {
		slog.Error("failed to uninitialize miniaudio context", "error", err)
		return err
	}
	c.ctx.Free()
	c.ctx = nil
	slog.Debug("miniaudio context released")
	return nil
}
