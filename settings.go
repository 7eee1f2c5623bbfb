package parley

import (
	"context"
	"os"

	"github.com/parley-lsp/parley/config"
	"github.com/parley-lsp/parley/protocol"
)

// settingsHolder is stored on the client as an interface to allow generic
// settings types.
type settingsHolder interface {
	start(c *Client) error
	close()
	configuration(params *protocol.ConfigurationParams) []interface{}
}

// typedSettingsHolder is the generic implementation of settingsHolder.
type typedSettingsHolder[T any] struct {
	store   *config.Store[T]
	bridge  *config.ServerBridge[T]
	watcher *config.Watcher

	path     string
	section  string
	defaults *T
}

// WithSettings enables a typed settings system with hot-reload push. The
// TOML file at path is loaded after the handshake and watched for changes;
// every change is pushed to the server as workspace/didChangeConfiguration.
// section names the configuration section this client answers when the
// server asks via workspace/configuration. The defaults value is used when
// no settings file exists.
func WithSettings[T any](path, section string, defaults T) Option {
	return func(c *Client) {
		initial := defaults
		holder := &typedSettingsHolder[T]{
			store:    config.NewStore(&initial),
			path:     path,
			section:  section,
			defaults: &defaults,
		}
		c.settingsHolder = holder
	}
}

// Settings retrieves the current typed settings from the context.
// T must match the type used in WithSettings.
func Settings[T any](ctx *Context) *T {
	if ctx.client.settingsHolder == nil {
		return nil
	}
	if h, ok := ctx.client.settingsHolder.(*typedSettingsHolder[T]); ok {
		return h.store.Get()
	}
	return nil
}

// OnSettingsChange registers a callback for settings changes. Must be called
// with the same type T used in WithSettings.
func OnSettingsChange[T any](c *Client, fn func(ctx *Context, old, new_ *T)) {
	if c.settingsHolder == nil {
		return
	}
	if h, ok := c.settingsHolder.(*typedSettingsHolder[T]); ok {
		h.store.OnChange(func(old, new_ *T) {
			ctx := newContext(context.Background(), c)
			fn(ctx, old, new_)
		})
	}
}

func (h *typedSettingsHolder[T]) start(c *Client) error {
	h.bridge = config.NewServerBridge[T](h.store, c, h.path, h.section, h.defaults)

	// Load initial settings from file if it exists; the swap pushes them to
	// the freshly initialized server.
	if _, err := os.Stat(h.path); err == nil {
		if err := h.bridge.Reload(); err != nil {
			c.logger.Warn("failed to load initial settings", "path", h.path, "error", err)
		}
	}

	watcher, err := config.NewWatcher(h.path, func() {
		if err := h.bridge.Reload(); err != nil {
			c.logger.Warn("failed to reload settings", "path", h.path, "error", err)
		}
	}, config.WithWatcherLogger(c.logger))
	if err != nil {
		// File watching is best-effort; log and continue if it fails
		c.logger.Warn("failed to start settings watcher", "path", h.path, "error", err)
		return nil
	}
	h.watcher = watcher
	return nil
}

func (h *typedSettingsHolder[T]) close() {
	if h.watcher != nil {
		h.watcher.Close()
	}
}

func (h *typedSettingsHolder[T]) configuration(params *protocol.ConfigurationParams) []interface{} {
	if h.bridge == nil {
		return make([]interface{}, len(params.Items))
	}
	return h.bridge.Configuration(params)
}
