package parley

import (
	"encoding/json"

	"github.com/parley-lsp/parley/protocol"
)

// RawHandler processes a server-to-client request with raw params. Use
// HandleRequest to register these for custom or unsupported LSP methods.
type RawHandler func(ctx *Context, params json.RawMessage) (interface{}, error)

// RawNotificationHandler processes a server-to-client notification with raw
// params. Use HandleNotification to register these for custom or unsupported
// LSP notifications.
type RawNotificationHandler func(ctx *Context, params json.RawMessage)

// Handler function types for each server-to-client LSP method.
// Request handlers return a result and an error.
// Notification handlers return only an error.

// Notifications
type DiagnosticsHandler func(ctx *Context, params *protocol.PublishDiagnosticsParams) error
type LogMessageHandler func(ctx *Context, params *protocol.LogMessageParams) error
type ShowMessageHandler func(ctx *Context, params *protocol.ShowMessageParams) error
type TelemetryHandler func(ctx *Context, data json.RawMessage) error
type ProgressHandler func(ctx *Context, params *protocol.ProgressParams) error

// Requests
type ShowMessageRequestHandler func(ctx *Context, params *protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error)
type ApplyEditHandler func(ctx *Context, params *protocol.ApplyWorkspaceEditParams) (*protocol.ApplyWorkspaceEditResponse, error)
type WorkDoneProgressCreateHandler func(ctx *Context, params *protocol.WorkDoneProgressCreateParams) error
type RegisterCapabilityHandler func(ctx *Context, params *protocol.RegistrationParams) error
type UnregisterCapabilityHandler func(ctx *Context, params *protocol.UnregistrationParams) error
