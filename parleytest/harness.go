// Package parleytest provides testing utilities for parley LSP clients.
// It includes a scripted in-memory language server that answers the
// handshake and any canned responses a test registers, records everything
// the client sends, and can push notifications and server-to-client
// requests, all without network I/O or subprocesses.
package parleytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/parley-lsp/parley/jsonrpc"
	"github.com/parley-lsp/parley/protocol"
	"github.com/parley-lsp/parley/transport"
)

// Responder produces the canned result for one client request.
type Responder func(params json.RawMessage) (interface{}, error)

// Received is one recorded message from the client.
type Received struct {
	Method string
	Params json.RawMessage
}

// Server is a scripted in-memory language server. Create one with NewServer,
// register responders, then hand its Transport to parley.Connect.
type Server struct {
	t    testing.TB
	conn *jsonrpc.Conn

	clientTransport transport.Transport

	mu         sync.Mutex
	responders map[string]Responder
	received   []Received
	caps       protocol.ServerCapabilities
	info       protocol.ServerInfo
	shutdown   bool
}

// ServerOption configures the scripted server.
type ServerOption func(*Server)

// WithCapabilities replaces the capabilities advertised during initialize.
// The default advertises every feature the typed proxy can gate on.
func WithCapabilities(caps protocol.ServerCapabilities) ServerOption {
	return func(s *Server) { s.caps = caps }
}

// NewServer starts a scripted server on one end of an in-memory pipe and
// returns it together with the client end. The server is stopped
// automatically when the test completes.
func NewServer(t testing.TB, opts ...ServerOption) (*Server, transport.Transport) {
	clientTransport, serverTransport := transport.MemoryPipe()

	s := &Server{
		t:               t,
		clientTransport: clientTransport,
		responders:      make(map[string]Responder),
		caps:            defaultCapabilities(),
		info:            protocol.ServerInfo{Name: "parleytest", Version: "0.0.0"},
	}
	for _, o := range opts {
		o(s)
	}

	codec := jsonrpc.NewCodec(serverTransport, serverTransport)
	s.conn = jsonrpc.NewConn(codec, s.handleRequest, s.handleNotification)
	s.conn.Start()

	t.Cleanup(func() {
		s.conn.Close()
		serverTransport.Close()
		clientTransport.Close()
	})

	return s, clientTransport
}

func defaultCapabilities() protocol.ServerCapabilities {
	return protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.SyncIncremental,
			Save:      &protocol.SaveOptions{IncludeText: true},
		},
		HoverProvider:              true,
		CompletionProvider:         &protocol.CompletionOptions{},
		DefinitionProvider:         true,
		ReferencesProvider:         true,
		DocumentSymbolProvider:     true,
		WorkspaceSymbolProvider:    true,
		CodeActionProvider:         true,
		DocumentFormattingProvider: true,
		RenameProvider:             true,
		SignatureHelpProvider:      &protocol.SignatureHelpOptions{},
		ExecuteCommandProvider:     &protocol.ExecuteCommandOptions{},
	}
}

// Respond registers a canned responder for a client request method.
func (s *Server) Respond(method string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method] = r
}

// RespondWith registers a responder that always returns the given value.
func (s *Server) RespondWith(method string, result interface{}) {
	s.Respond(method, func(json.RawMessage) (interface{}, error) {
		return result, nil
	})
}

// RespondError registers a responder that always fails with an LSP error.
func (s *Server) RespondError(method string, code int, message string) {
	s.Respond(method, func(json.RawMessage) (interface{}, error) {
		return nil, &jsonrpc.Error{Code: code, Message: message}
	})
}

func (s *Server) handleRequest(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
	s.record(method, params)

	switch method {
	case protocol.MethodInitialize:
		s.mu.Lock()
		caps, info := s.caps, s.info
		s.mu.Unlock()
		return &protocol.InitializeResult{Capabilities: caps, ServerInfo: &info}, nil
	case protocol.MethodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	r, ok := s.responders[method]
	s.mu.Unlock()
	if !ok {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: fmt.Sprintf("no responder for %s", method)}
	}
	return r(json.RawMessage(params))
}

func (s *Server) handleNotification(ctx context.Context, method string, params jsonrpc.RawMessage) {
	s.record(method, params)
	if method == protocol.MethodExit {
		s.conn.Close()
	}
}

func (s *Server) record(method string, params jsonrpc.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, Received{Method: method, Params: json.RawMessage(params)})
}

// --- Server push API ---

// Notify pushes a notification to the client.
func (s *Server) Notify(method string, params interface{}) {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conn.Notify(ctx, method, params); err != nil {
		s.t.Fatalf("notify %s failed: %v", method, err)
	}
}

// PublishDiagnostics pushes a textDocument/publishDiagnostics notification.
func (s *Server) PublishDiagnostics(uri string, diags ...protocol.Diagnostic) {
	s.t.Helper()
	s.Notify(protocol.MethodPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: diags,
	})
}

// LogMessage pushes a window/logMessage notification.
func (s *Server) LogMessage(typ protocol.MessageType, message string) {
	s.t.Helper()
	s.Notify(protocol.MethodLogMessage, &protocol.LogMessageParams{Type: typ, Message: message})
}

// Request sends a server-to-client request and decodes the result.
func (s *Server) Request(method string, params, result interface{}) error {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.CallInto(ctx, method, params, result)
}

// ApplyEdit sends a workspace/applyEdit request and returns the client's answer.
func (s *Server) ApplyEdit(edit protocol.WorkspaceEdit) (*protocol.ApplyWorkspaceEditResponse, error) {
	s.t.Helper()
	var resp protocol.ApplyWorkspaceEditResponse
	if err := s.Request(protocol.MethodApplyEdit, &protocol.ApplyWorkspaceEditParams{Edit: edit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Configuration sends a workspace/configuration request.
func (s *Server) Configuration(items ...protocol.ConfigurationItem) ([]json.RawMessage, error) {
	s.t.Helper()
	var result []json.RawMessage
	err := s.Request(protocol.MethodWorkspaceConfiguration, &protocol.ConfigurationParams{Items: items}, &result)
	return result, err
}

// --- Recorded traffic ---

// Received returns every recorded message for the given method, in arrival
// order. An empty method returns everything.
func (s *Server) Received(method string) []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Received
	for _, r := range s.received {
		if method == "" || r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// WaitFor polls until at least one message with the given method has been
// received, or the timeout expires. It returns the latest match.
func (s *Server) WaitFor(method string, timeout time.Duration) Received {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := s.Received(method); len(got) > 0 {
			return got[len(got)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("timed out waiting for %s", method)
	return Received{}
}

// ShutdownReceived reports whether the client has sent the shutdown request.
func (s *Server) ShutdownReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Kill severs the client's transport without any shutdown exchange,
// simulating a server crash.
func (s *Server) Kill() {
	s.conn.Close()
	s.clientTransport.Close()
}
