package parley

import (
	"context"
	"log/slog"

	"github.com/parley-lsp/parley/document"
	"github.com/parley-lsp/parley/protocol"
)

// Context wraps context.Context with convenient accessors for LSP services.
// It is passed to every registered handler.
type Context struct {
	context.Context

	Server    *ServerProxy
	Documents *document.Store
	client    *Client
}

func newContext(ctx context.Context, c *Client) *Context {
	return &Context{
		Context:   ctx,
		Server:    c.server,
		Documents: c.docs,
		client:    c,
	}
}

// ClientInfo returns the client's name and version.
func (c *Context) ClientInfo() protocol.ClientInfo {
	return protocol.ClientInfo{
		Name:    c.client.name,
		Version: c.client.version,
	}
}

// Client returns the underlying Client, providing full access to internals.
func (c *Context) Client() *Client {
	return c.client
}

// Logger returns the client's logger.
func (c *Context) Logger() *slog.Logger {
	return c.client.logger
}

// WorkspaceRoot returns the primary workspace root URI. This is the first
// workspace folder, or the configured rootURI if no folders were set.
func (c *Context) WorkspaceRoot() protocol.DocumentURI {
	c.client.mu.RLock()
	defer c.client.mu.RUnlock()
	if len(c.client.workspaceFolders) > 0 {
		return c.client.workspaceFolders[0].URI
	}
	if c.client.rootURI != nil {
		return *c.client.rootURI
	}
	return ""
}

// WorkspaceFolders returns all current workspace folders.
func (c *Context) WorkspaceFolders() []protocol.WorkspaceFolder {
	return c.client.WorkspaceFolders()
}

// FolderFor returns the workspace folder that contains the given document URI,
// using longest-prefix matching. Returns nil if no folder matches.
func (c *Context) FolderFor(uri protocol.DocumentURI) *protocol.WorkspaceFolder {
	return c.client.FolderFor(uri)
}

// ServerCapabilities returns the capabilities advertised by the server
// during initialization.
func (c *Context) ServerCapabilities() protocol.ServerCapabilities {
	return c.client.ServerCapabilities()
}

// ServerInfo returns the server's self-reported identity, or nil.
func (c *Context) ServerInfo() *protocol.ServerInfo {
	return c.client.ServerInfo()
}
