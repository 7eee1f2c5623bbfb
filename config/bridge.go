package config

import (
	"context"
	"log/slog"

	"github.com/parley-lsp/parley/protocol"
)

// Notifier sends a notification to the server.
type Notifier interface {
	Notify(ctx context.Context, method string, params interface{}) error
}

// ServerBridge connects a settings store to a language server. Every store
// swap is pushed as workspace/didChangeConfiguration, and the bridge answers
// the server's workspace/configuration requests from the current value.
//
// Usage: create the bridge after Connect, then wire Reload to a Watcher.
type ServerBridge[T any] struct {
	store    *Store[T]
	filePath string
	defaults *T
	section  string
	logger   *slog.Logger
}

// NewServerBridge creates a bridge between the store and the server. section
// names the configuration section this client owns; the server's
// workspace/configuration items are matched against it.
func NewServerBridge[T any](store *Store[T], notifier Notifier, filePath, section string, defaults *T) *ServerBridge[T] {
	b := &ServerBridge[T]{
		store:    store,
		filePath: filePath,
		defaults: defaults,
		section:  section,
		logger:   slog.Default(),
	}
	store.OnChange(func(_, new_ *T) {
		err := notifier.Notify(context.Background(), protocol.MethodDidChangeConfiguration,
			&protocol.DidChangeConfigurationParams{Settings: new_})
		if err != nil {
			b.logger.Error("pushing settings to server", "error", err)
		}
	})
	return b
}

// Reload reloads settings from the TOML file and swaps them into the store.
// Call it from a Watcher's onReload callback.
func (b *ServerBridge[T]) Reload() error {
	cfg, err := LoadTOML[T](b.filePath, b.defaults)
	if err != nil {
		return err
	}
	b.store.Swap(cfg)
	return nil
}

// Configuration answers a workspace/configuration request. Items whose
// section matches the bridge's section (or is empty) get the current
// settings value; anything else gets null.
func (b *ServerBridge[T]) Configuration(params *protocol.ConfigurationParams) []interface{} {
	results := make([]interface{}, len(params.Items))
	for i, item := range params.Items {
		if item.Section == "" || item.Section == b.section {
			results[i] = b.store.Get()
		}
	}
	return results
}
