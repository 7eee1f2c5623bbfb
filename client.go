package parley

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/parley-lsp/parley/document"
	"github.com/parley-lsp/parley/jsonrpc"
	mw "github.com/parley-lsp/parley/middleware"
	"github.com/parley-lsp/parley/protocol"
)

// Client is the central type of the parley toolkit. It registers handlers
// for server-to-client traffic, manages the session lifecycle, and owns the
// local view of documents and workspace state.
type Client struct {
	name    string
	version string
	logger  *slog.Logger

	// connection and server proxy (set during Connect)
	conn           *jsonrpc.Conn
	server         *ServerProxy
	closeTransport func() error

	// outbound call path, wrapped by middleware during Connect
	outbound       mw.Handler
	outboundNotify mw.Handler

	// built-in document store
	docs *document.Store

	// settings system (nil if not enabled)
	settingsHolder settingsHolder

	// middleware chain
	middlewares []mw.Middleware

	// handler registry
	mu               sync.RWMutex
	handlers         map[string]interface{}
	rawReqHandlers   map[string]RawHandler
	rawNotifHandlers map[string]RawNotificationHandler

	// workspace state (sent during initialize)
	rootURI          *protocol.DocumentURI
	workspaceFolders []protocol.WorkspaceFolder
	initOptions      interface{}

	// session state (populated from the initialize result)
	serverCaps    protocol.ServerCapabilities
	serverInfo    *protocol.ServerInfo
	registrations map[string]protocol.Registration

	// lifecycle state
	connected bool
	shutdown  bool
}

// NewClient creates a new parley LSP client with the given name and version.
// The name and version are reported to the server as clientInfo.
func NewClient(name, version string, opts ...Option) *Client {
	c := &Client{
		name:             name,
		version:          version,
		logger:           slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
		handlers:         make(map[string]interface{}),
		rawReqHandlers:   make(map[string]RawHandler),
		rawNotifHandlers: make(map[string]RawNotificationHandler),
		registrations:    make(map[string]protocol.Registration),
	}
	c.docs = document.NewStore(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

// --- Handler registration (functional pattern) ---

func (c *Client) OnDiagnostics(h DiagnosticsHandler) { c.register(protocol.MethodPublishDiagnostics, h) }
func (c *Client) OnLogMessage(h LogMessageHandler)   { c.register(protocol.MethodLogMessage, h) }
func (c *Client) OnShowMessage(h ShowMessageHandler) { c.register(protocol.MethodShowMessage, h) }
func (c *Client) OnTelemetry(h TelemetryHandler)     { c.register(protocol.MethodTelemetryEvent, h) }
func (c *Client) OnProgress(h ProgressHandler)       { c.register(protocol.MethodProgress, h) }

func (c *Client) OnShowMessageRequest(h ShowMessageRequestHandler) {
	c.register(protocol.MethodShowMessageRequest, h)
}

// OnApplyEdit overrides the built-in workspace/applyEdit behavior of
// applying the edit to the document store.
func (c *Client) OnApplyEdit(h ApplyEditHandler) { c.register(protocol.MethodApplyEdit, h) }

func (c *Client) OnWorkDoneProgressCreate(h WorkDoneProgressCreateHandler) {
	c.register(protocol.MethodWorkDoneProgressCreate, h)
}
func (c *Client) OnRegisterCapability(h RegisterCapabilityHandler) {
	c.register(protocol.MethodRegisterCapability, h)
}
func (c *Client) OnUnregisterCapability(h UnregisterCapabilityHandler) {
	c.register(protocol.MethodUnregisterCapability, h)
}

// HandleRequest registers a raw handler for a custom or unhandled
// server-to-client LSP method.
func (c *Client) HandleRequest(method string, h RawHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawReqHandlers[method] = h
}

// HandleNotification registers a raw handler for a custom or unhandled
// server-to-client LSP notification.
func (c *Client) HandleNotification(method string, h RawNotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawNotifHandlers[method] = h
}

// --- Accessor methods ("break glass" escape hatches) ---

// Documents returns the document store.
func (c *Client) Documents() *document.Store { return c.docs }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Conn returns the JSON-RPC connection, or nil before Connect() is called.
func (c *Client) Conn() *jsonrpc.Conn { return c.conn }

// Server returns the typed server proxy, or nil before Connect() is called.
func (c *Client) Server() *ServerProxy { return c.server }

// ServerCapabilities returns the capabilities the server advertised during
// initialize. The zero value is returned before Connect completes.
func (c *Client) ServerCapabilities() protocol.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCaps
}

// ServerInfo returns the server's self-reported name and version, or nil if
// the server sent none.
func (c *Client) ServerInfo() *protocol.ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// WorkspaceFolders returns the current workspace folders.
func (c *Client) WorkspaceFolders() []protocol.WorkspaceFolder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.WorkspaceFolder, len(c.workspaceFolders))
	copy(out, c.workspaceFolders)
	return out
}

// FolderFor returns the workspace folder that contains the given document URI,
// using longest-prefix matching. Returns nil if no folder matches.
func (c *Client) FolderFor(uri protocol.DocumentURI) *protocol.WorkspaceFolder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	uriStr := string(uri)
	var best *protocol.WorkspaceFolder
	bestLen := 0
	for i := range c.workspaceFolders {
		prefix := string(c.workspaceFolders[i].URI)
		if strings.HasPrefix(uriStr, prefix) && len(prefix) > bestLen {
			best = &c.workspaceFolders[i]
			bestLen = len(prefix)
		}
	}
	return best
}

// ChangeWorkspaceFolders applies folder adds/removes locally and notifies the
// server with workspace/didChangeWorkspaceFolders.
func (c *Client) ChangeWorkspaceFolders(ctx context.Context, added, removed []protocol.WorkspaceFolder) error {
	c.mu.Lock()
	for _, r := range removed {
		for i, f := range c.workspaceFolders {
			if f.URI == r.URI {
				c.workspaceFolders = append(c.workspaceFolders[:i], c.workspaceFolders[i+1:]...)
				break
			}
		}
	}
	c.workspaceFolders = append(c.workspaceFolders, added...)
	c.mu.Unlock()

	return c.Notify(ctx, protocol.MethodDidChangeWorkspaceFolders, &protocol.DidChangeWorkspaceFoldersParams{
		Event: protocol.WorkspaceFoldersChangeEvent{Added: added, Removed: removed},
	})
}

// Registrations returns the capabilities the server has registered
// dynamically via client/registerCapability.
func (c *Client) Registrations() []protocol.Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.Registration, 0, len(c.registrations))
	for _, r := range c.registrations {
		out = append(out, r)
	}
	return out
}

func (c *Client) register(method string, handler interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = handler
}

func (c *Client) getHandler(method string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[method]
	return h, ok
}

// --- Outbound path ---

// call sends a request through the middleware chain and decodes the result.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	c.mu.RLock()
	out := c.outbound
	c.mu.RUnlock()
	if out == nil {
		return ErrNotConnected
	}

	raw, err := out(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	data, ok := raw.(jsonrpc.RawMessage)
	if !ok || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// Notify sends a notification to the server through the middleware chain.
// It satisfies document.Notifier and config.Notifier.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	c.mu.RLock()
	out := c.outboundNotify
	c.mu.RUnlock()
	if out == nil {
		return ErrNotConnected
	}
	_, err := out(ctx, method, params)
	return err
}

// --- Inbound dispatch ---

// dispatchRequest routes server-to-client requests to built-in behavior or
// registered handlers.
func (c *Client) dispatchRequest(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
	pctx := newContext(ctx, c)

	switch method {
	case protocol.MethodApplyEdit:
		var p protocol.ApplyWorkspaceEditParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		if h, ok := c.getHandler(method); ok {
			return h.(ApplyEditHandler)(pctx, &p)
		}
		resp := c.docs.ApplyWorkspaceEdit(pctx, p.Edit)
		return &resp, nil

	case protocol.MethodWorkspaceConfiguration:
		var p protocol.ConfigurationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		if c.settingsHolder != nil {
			return c.settingsHolder.configuration(&p), nil
		}
		return make([]interface{}, len(p.Items)), nil

	case protocol.MethodShowMessageRequest:
		var p protocol.ShowMessageRequestParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		if h, ok := c.getHandler(method); ok {
			return h.(ShowMessageRequestHandler)(pctx, &p)
		}
		// No UI registered: dismiss without picking an action.
		return nil, nil

	case protocol.MethodWorkDoneProgressCreate:
		var p protocol.WorkDoneProgressCreateParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		if h, ok := c.getHandler(method); ok {
			return nil, h.(WorkDoneProgressCreateHandler)(pctx, &p)
		}
		return nil, nil

	case protocol.MethodRegisterCapability:
		var p protocol.RegistrationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		c.mu.Lock()
		for _, r := range p.Registrations {
			c.registrations[r.ID] = r
		}
		c.mu.Unlock()
		if h, ok := c.getHandler(method); ok {
			return nil, h.(RegisterCapabilityHandler)(pctx, &p)
		}
		return nil, nil

	case protocol.MethodUnregisterCapability:
		var p protocol.UnregistrationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		c.mu.Lock()
		for _, u := range p.Unregistrations {
			delete(c.registrations, u.ID)
		}
		c.mu.Unlock()
		if h, ok := c.getHandler(method); ok {
			return nil, h.(UnregisterCapabilityHandler)(pctx, &p)
		}
		return nil, nil

	case protocol.MethodWorkspaceFoldersRequest:
		return c.WorkspaceFolders(), nil
	}

	c.mu.RLock()
	rh, ok := c.rawReqHandlers[method]
	c.mu.RUnlock()
	if ok {
		return rh(pctx, json.RawMessage(params))
	}

	return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
}

// dispatchNotification routes server-to-client notifications. It runs on the
// connection's dispatch goroutine, so handlers see notifications in the
// exact order the server sent them.
func (c *Client) dispatchNotification(ctx context.Context, method string, params jsonrpc.RawMessage) {
	pctx := newContext(ctx, c)

	switch method {
	case protocol.MethodPublishDiagnostics:
		var p protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.logger.Warn("bad publishDiagnostics payload", "error", err)
			return
		}
		if h, ok := c.getHandler(method); ok {
			if err := h.(DiagnosticsHandler)(pctx, &p); err != nil {
				c.logger.Error("diagnostics handler failed", "uri", p.URI, "error", err)
			}
		}
		return

	case protocol.MethodLogMessage:
		var p protocol.LogMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		if h, ok := c.getHandler(method); ok {
			if err := h.(LogMessageHandler)(pctx, &p); err != nil {
				c.logger.Error("logMessage handler failed", "error", err)
			}
			return
		}
		c.logServerMessage(p.Type, p.Message)
		return

	case protocol.MethodShowMessage:
		var p protocol.ShowMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		if h, ok := c.getHandler(method); ok {
			if err := h.(ShowMessageHandler)(pctx, &p); err != nil {
				c.logger.Error("showMessage handler failed", "error", err)
			}
			return
		}
		c.logServerMessage(p.Type, p.Message)
		return

	case protocol.MethodTelemetryEvent:
		if h, ok := c.getHandler(method); ok {
			if err := h.(TelemetryHandler)(pctx, json.RawMessage(params)); err != nil {
				c.logger.Error("telemetry handler failed", "error", err)
			}
		}
		return

	case protocol.MethodProgress:
		var p protocol.ProgressParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		if h, ok := c.getHandler(method); ok {
			if err := h.(ProgressHandler)(pctx, &p); err != nil {
				c.logger.Error("progress handler failed", "error", err)
			}
		}
		return
	}

	c.mu.RLock()
	rh, ok := c.rawNotifHandlers[method]
	c.mu.RUnlock()
	if ok {
		rh(pctx, json.RawMessage(params))
		return
	}

	c.logger.Debug("unhandled server notification", "method", method)
}

// logServerMessage forwards a window/logMessage or window/showMessage to the
// client's logger when no handler is registered.
func (c *Client) logServerMessage(typ protocol.MessageType, message string) {
	switch typ {
	case protocol.Error:
		c.logger.Error("server message", "message", message)
	case protocol.Warning:
		c.logger.Warn("server message", "message", message)
	default:
		c.logger.Info("server message", "message", message)
	}
}
