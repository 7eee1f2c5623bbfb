package parley

import (
	"context"

	"github.com/parley-lsp/parley/jsonrpc"
	"github.com/parley-lsp/parley/protocol"
)

// ServerProxy sends requests and notifications from client to server. Every
// request wrapper is gated on the capabilities the server advertised during
// initialize and returns ErrNotSupported when the feature is missing, so
// callers never wait on a method the server will reject.
type ServerProxy struct {
	c *Client
}

func newServerProxy(c *Client) *ServerProxy {
	return &ServerProxy{c: c}
}

func (p *ServerProxy) request(ctx context.Context, method string, params, result interface{}) error {
	if !p.c.Supports(method) {
		return ErrNotSupported
	}
	return p.c.call(ctx, method, params, result)
}

// --- Language features ---

// Hover requests hover information at a position. A nil result means the
// server has nothing to show.
func (p *ServerProxy) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	var result *protocol.Hover
	if err := p.request(ctx, protocol.MethodHover, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Completion requests completion items at a position.
func (p *ServerProxy) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	var result *protocol.CompletionList
	if err := p.request(ctx, protocol.MethodCompletion, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Definition requests the definition locations of the symbol at a position.
func (p *ServerProxy) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	var result []protocol.Location
	if err := p.request(ctx, protocol.MethodDefinition, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Declaration requests the declaration locations of the symbol at a position.
func (p *ServerProxy) Declaration(ctx context.Context, params *protocol.DeclarationParams) ([]protocol.Location, error) {
	var result []protocol.Location
	if err := p.request(ctx, protocol.MethodDeclaration, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// TypeDefinition requests the type definition locations of the symbol at a position.
func (p *ServerProxy) TypeDefinition(ctx context.Context, params *protocol.TypeDefinitionParams) ([]protocol.Location, error) {
	var result []protocol.Location
	if err := p.request(ctx, protocol.MethodTypeDefinition, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Implementation requests the implementation locations of the symbol at a position.
func (p *ServerProxy) Implementation(ctx context.Context, params *protocol.ImplementationParams) ([]protocol.Location, error) {
	var result []protocol.Location
	if err := p.request(ctx, protocol.MethodImplementation, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// References requests all references to the symbol at a position.
func (p *ServerProxy) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	var result []protocol.Location
	if err := p.request(ctx, protocol.MethodReferences, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentSymbol requests the symbol outline of a document.
func (p *ServerProxy) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) ([]protocol.DocumentSymbol, error) {
	var result []protocol.DocumentSymbol
	if err := p.request(ctx, protocol.MethodDocumentSymbol, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// WorkspaceSymbol queries symbols across the workspace.
func (p *ServerProxy) WorkspaceSymbol(ctx context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	var result []protocol.SymbolInformation
	if err := p.request(ctx, protocol.MethodWorkspaceSymbol, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CodeAction requests code actions for a range.
func (p *ServerProxy) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	var result []protocol.CodeAction
	if err := p.request(ctx, protocol.MethodCodeAction, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Formatting requests whole-document formatting edits.
func (p *ServerProxy) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	var result []protocol.TextEdit
	if err := p.request(ctx, protocol.MethodFormatting, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RangeFormatting requests formatting edits for a range.
func (p *ServerProxy) RangeFormatting(ctx context.Context, params *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error) {
	var result []protocol.TextEdit
	if err := p.request(ctx, protocol.MethodRangeFormatting, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Rename requests a workspace edit renaming the symbol at a position.
func (p *ServerProxy) Rename(ctx context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	var result *protocol.WorkspaceEdit
	if err := p.request(ctx, protocol.MethodRename, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// PrepareRename asks whether the symbol at a position can be renamed.
func (p *ServerProxy) PrepareRename(ctx context.Context, params *protocol.PrepareRenameParams) (*protocol.Range, error) {
	var result *protocol.Range
	if err := p.request(ctx, protocol.MethodPrepareRename, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SignatureHelp requests signature information at a position.
func (p *ServerProxy) SignatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	var result *protocol.SignatureHelp
	if err := p.request(ctx, protocol.MethodSignatureHelp, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentHighlight requests highlights for the symbol at a position.
func (p *ServerProxy) DocumentHighlight(ctx context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	var result []protocol.DocumentHighlight
	if err := p.request(ctx, protocol.MethodDocumentHighlight, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FoldingRange requests the folding ranges of a document.
func (p *ServerProxy) FoldingRange(ctx context.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	var result []protocol.FoldingRange
	if err := p.request(ctx, protocol.MethodFoldingRange, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// InlayHint requests inlay hints for a range.
func (p *ServerProxy) InlayHint(ctx context.Context, params *protocol.InlayHintParams) ([]protocol.InlayHint, error) {
	var result []protocol.InlayHint
	if err := p.request(ctx, protocol.MethodInlayHint, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SemanticTokens requests full semantic tokens for a document.
func (p *ServerProxy) SemanticTokens(ctx context.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	var result *protocol.SemanticTokens
	if err := p.request(ctx, protocol.MethodSemanticTokensFull, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CodeLens requests code lenses for a document.
func (p *ServerProxy) CodeLens(ctx context.Context, params *protocol.CodeLensParams) ([]protocol.CodeLens, error) {
	var result []protocol.CodeLens
	if err := p.request(ctx, protocol.MethodCodeLens, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentLink requests the links in a document.
func (p *ServerProxy) DocumentLink(ctx context.Context, params *protocol.DocumentLinkParams) ([]protocol.DocumentLink, error) {
	var result []protocol.DocumentLink
	if err := p.request(ctx, protocol.MethodDocumentLink, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SelectionRange requests selection ranges at the given positions.
func (p *ServerProxy) SelectionRange(ctx context.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	var result []protocol.SelectionRange
	if err := p.request(ctx, protocol.MethodSelectionRange, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// WillSaveWaitUntil announces an imminent save and returns edits the server
// wants applied before the document is written to disk.
func (p *ServerProxy) WillSaveWaitUntil(ctx context.Context, params *protocol.WillSaveTextDocumentParams) ([]protocol.TextEdit, error) {
	var result []protocol.TextEdit
	if err := p.c.call(ctx, protocol.MethodWillSaveWaitUntil, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteCommand asks the server to execute a command it advertised.
func (p *ServerProxy) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (jsonrpc.RawMessage, error) {
	var result jsonrpc.RawMessage
	if err := p.request(ctx, protocol.MethodExecuteCommand, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// --- Notifications ---

// DidChangeConfiguration pushes new settings to the server.
func (p *ServerProxy) DidChangeConfiguration(ctx context.Context, settings interface{}) error {
	return p.c.Notify(ctx, protocol.MethodDidChangeConfiguration, &protocol.DidChangeConfigurationParams{
		Settings: settings,
	})
}

// DidChangeWatchedFiles reports file system changes to the server.
func (p *ServerProxy) DidChangeWatchedFiles(ctx context.Context, changes []protocol.FileEvent) error {
	return p.c.Notify(ctx, protocol.MethodDidChangeWatchedFiles, &protocol.DidChangeWatchedFilesParams{
		Changes: changes,
	})
}

// SetTrace adjusts the server's trace verbosity ("off", "messages", "verbose").
func (p *ServerProxy) SetTrace(ctx context.Context, value string) error {
	return p.c.Notify(ctx, protocol.MethodSetTrace, &protocol.SetTraceParams{Value: value})
}

// Cancel asks the server to abandon an in-flight request. Connect wires this
// automatically for calls abandoned via context cancellation.
func (p *ServerProxy) Cancel(ctx context.Context, id interface{}) error {
	return p.c.Notify(ctx, protocol.MethodCancelRequest, &protocol.CancelParams{ID: id})
}

// --- Lifecycle ---

// Shutdown sends the shutdown request. The server stays alive until Exit.
func (p *ServerProxy) Shutdown(ctx context.Context) error {
	return p.c.call(ctx, protocol.MethodShutdown, nil, nil)
}

// Exit sends the exit notification. The server process terminates after this.
func (p *ServerProxy) Exit(ctx context.Context) error {
	return p.c.Notify(ctx, protocol.MethodExit, nil)
}
