package parley

import "github.com/parley-lsp/parley/protocol"

// buildClientCapabilities inspects which handlers are registered and returns
// a ClientCapabilities struct that accurately reflects what this client
// supports.
func (c *Client) buildClientCapabilities() protocol.ClientCapabilities {
	caps := protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{
			ApplyEdit:        true,
			WorkspaceFolders: true,
			Configuration:    c.settingsHolder != nil,
		},
		TextDocument: &protocol.TextDocumentClientCapabilities{
			Synchronization: &protocol.TextDocumentSyncClientCapabilities{
				WillSave: true,
				DidSave:  true,
			},
		},
		General: &protocol.GeneralClientCapabilities{
			PositionEncodings: []string{"utf-16"},
		},
	}

	if _, ok := c.getHandler(protocol.MethodPublishDiagnostics); ok {
		caps.TextDocument.PublishDiagnostics = &protocol.PublishDiagnosticsClientCapabilities{
			RelatedInformation: true,
			VersionSupport:     true,
		}
	}
	if _, ok := c.getHandler(protocol.MethodProgress); ok {
		caps.Window = &protocol.WindowClientCapabilities{WorkDoneProgress: true}
	}
	if _, ok := c.getHandler(protocol.MethodWorkDoneProgressCreate); ok {
		caps.Window = &protocol.WindowClientCapabilities{WorkDoneProgress: true}
	}

	return caps
}

// Supports reports whether the server advertised the capability backing the
// given client-to-server method. Document sync methods are always supported.
func (c *Client) Supports(method string) bool {
	caps := c.ServerCapabilities()

	switch method {
	case protocol.MethodDidOpen, protocol.MethodDidChange, protocol.MethodDidClose:
		return true
	case protocol.MethodDidSave, protocol.MethodWillSave:
		return caps.TextDocumentSync == nil || caps.TextDocumentSync.Change != protocol.SyncNone
	case protocol.MethodHover:
		return provided(caps.HoverProvider)
	case protocol.MethodCompletion:
		return caps.CompletionProvider != nil
	case protocol.MethodDefinition:
		return provided(caps.DefinitionProvider)
	case protocol.MethodDeclaration:
		return provided(caps.DeclarationProvider)
	case protocol.MethodTypeDefinition:
		return provided(caps.TypeDefinitionProvider)
	case protocol.MethodImplementation:
		return provided(caps.ImplementationProvider)
	case protocol.MethodReferences:
		return provided(caps.ReferencesProvider)
	case protocol.MethodDocumentSymbol:
		return provided(caps.DocumentSymbolProvider)
	case protocol.MethodWorkspaceSymbol:
		return provided(caps.WorkspaceSymbolProvider)
	case protocol.MethodCodeAction:
		return provided(caps.CodeActionProvider)
	case protocol.MethodFormatting:
		return provided(caps.DocumentFormattingProvider)
	case protocol.MethodRangeFormatting:
		return provided(caps.DocumentRangeFormattingProvider)
	case protocol.MethodRename, protocol.MethodPrepareRename:
		return provided(caps.RenameProvider)
	case protocol.MethodSignatureHelp:
		return caps.SignatureHelpProvider != nil
	case protocol.MethodDocumentHighlight:
		return provided(caps.DocumentHighlightProvider)
	case protocol.MethodFoldingRange:
		return provided(caps.FoldingRangeProvider)
	case protocol.MethodInlayHint:
		return provided(caps.InlayHintProvider)
	case protocol.MethodSemanticTokensFull:
		return provided(caps.SemanticTokensProvider)
	case protocol.MethodCodeLens:
		return caps.CodeLensProvider != nil
	case protocol.MethodDocumentLink:
		return caps.DocumentLinkProvider != nil
	case protocol.MethodSelectionRange:
		return provided(caps.SelectionRangeProvider)
	case protocol.MethodExecuteCommand:
		return caps.ExecuteCommandProvider != nil
	}

	// Unknown methods are not gated.
	return true
}

// provided interprets the LSP "boolean | options" capability union.
func provided(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}
