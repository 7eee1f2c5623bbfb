// Package document provides a thread-safe store of client-owned text
// documents with position utilities. The store is the single writer for
// document content: every mutation is mirrored to the language server as a
// didOpen/didChange/didClose notification with a monotonically increasing
// version, so the server's view never drifts from the client's.
package document

import (
	"context"
	"errors"
	"sync"

	"github.com/parley-lsp/parley/protocol"
)

var (
	// ErrNotOpen is returned when an operation references a document that is
	// not in the store.
	ErrNotOpen = errors.New("document: not open")
	// ErrAlreadyOpen is returned by Open when the URI is already tracked.
	ErrAlreadyOpen = errors.New("document: already open")
)

// Notifier sends a notification to the server. *jsonrpc.Conn and
// *parley.Client both satisfy it.
type Notifier interface {
	Notify(ctx context.Context, method string, params interface{}) error
}

// Store tracks open text documents and keeps the server synchronized.
type Store struct {
	notifier Notifier

	mu   sync.RWMutex
	docs map[protocol.DocumentURI]*Document

	onOpenCallbacks  []func(doc *Document)
	onCloseCallbacks []func(uri protocol.DocumentURI)
}

// NewStore creates an empty document store that mirrors mutations through
// the given notifier.
func NewStore(n Notifier) *Store {
	return &Store{
		notifier: n,
		docs:     make(map[protocol.DocumentURI]*Document),
	}
}

// OnOpen registers a callback called when a document is opened. Multiple
// callbacks can be registered; they fire in registration order.
func (s *Store) OnOpen(fn func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpenCallbacks = append(s.onOpenCallbacks, fn)
}

// OnClose registers a callback called when a document is closed. Multiple
// callbacks can be registered; they fire in registration order.
func (s *Store) OnClose(fn func(uri protocol.DocumentURI)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCloseCallbacks = append(s.onCloseCallbacks, fn)
}

// Get returns the document for the given URI, or nil if not open.
func (s *Store) Get(uri protocol.DocumentURI) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// URIs returns all open document URIs.
func (s *Store) URIs() []protocol.DocumentURI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]protocol.DocumentURI, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	return uris
}

// Open adds a document to the store and sends textDocument/didOpen.
func (s *Store) Open(ctx context.Context, uri protocol.DocumentURI, languageID, text string) (*Document, error) {
	doc := New(uri, languageID, text)

	s.mu.Lock()
	if _, ok := s.docs[uri]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	s.docs[uri] = doc
	callbacks := make([]func(doc *Document), len(s.onOpenCallbacks))
	copy(callbacks, s.onOpenCallbacks)
	s.mu.Unlock()

	if err := s.notifier.Notify(ctx, protocol.MethodDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: doc.Item(),
	}); err != nil {
		s.mu.Lock()
		delete(s.docs, uri)
		s.mu.Unlock()
		return nil, err
	}

	for _, cb := range callbacks {
		cb(doc)
	}
	return doc, nil
}

// Change applies content changes to an open document, bumps its version, and
// sends textDocument/didChange.
func (s *Store) Change(ctx context.Context, uri protocol.DocumentURI, changes []protocol.TextDocumentContentChangeEvent) error {
	doc := s.Get(uri)
	if doc == nil {
		return ErrNotOpen
	}

	id := doc.applyChanges(changes)
	return s.notifier.Notify(ctx, protocol.MethodDidChange, &protocol.DidChangeTextDocumentParams{
		TextDocument:   id,
		ContentChanges: changes,
	})
}

// Edit replaces a single range in an open document. A nil range replaces the
// whole document.
func (s *Store) Edit(ctx context.Context, uri protocol.DocumentURI, rng *protocol.Range, text string) error {
	return s.Change(ctx, uri, []protocol.TextDocumentContentChangeEvent{
		{Range: rng, Text: text},
	})
}

// Close removes a document from the store and sends textDocument/didClose.
func (s *Store) Close(ctx context.Context, uri protocol.DocumentURI) error {
	s.mu.Lock()
	if _, ok := s.docs[uri]; !ok {
		s.mu.Unlock()
		return ErrNotOpen
	}
	delete(s.docs, uri)
	callbacks := make([]func(uri protocol.DocumentURI), len(s.onCloseCallbacks))
	copy(callbacks, s.onCloseCallbacks)
	s.mu.Unlock()

	err := s.notifier.Notify(ctx, protocol.MethodDidClose, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})

	for _, cb := range callbacks {
		cb(uri)
	}
	return err
}

// Save sends textDocument/didSave for an open document. If includeText is
// set the full document content rides along.
func (s *Store) Save(ctx context.Context, uri protocol.DocumentURI, includeText bool) error {
	doc := s.Get(uri)
	if doc == nil {
		return ErrNotOpen
	}

	params := &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}
	if includeText {
		text := doc.Text()
		params.Text = &text
	}
	return s.notifier.Notify(ctx, protocol.MethodDidSave, params)
}

// WillSave sends textDocument/willSave ahead of a save.
func (s *Store) WillSave(ctx context.Context, uri protocol.DocumentURI, reason protocol.TextDocumentSaveReason) error {
	if s.Get(uri) == nil {
		return ErrNotOpen
	}
	return s.notifier.Notify(ctx, protocol.MethodWillSave, &protocol.WillSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Reason:       reason,
	})
}

// ApplyWorkspaceEdit applies a server-proposed edit to the open documents,
// mirroring each modified document back via didChange. Documents named by
// the edit that are not open cause the whole edit to be rejected.
func (s *Store) ApplyWorkspaceEdit(ctx context.Context, edit protocol.WorkspaceEdit) protocol.ApplyWorkspaceEditResponse {
	for uri := range edit.Changes {
		if s.Get(uri) == nil {
			return protocol.ApplyWorkspaceEditResponse{
				Applied:       false,
				FailureReason: "document not open: " + string(uri),
			}
		}
	}

	for uri, edits := range edit.Changes {
		if err := s.Change(ctx, uri, EditsToChanges(edits)); err != nil {
			return protocol.ApplyWorkspaceEditResponse{
				Applied:       false,
				FailureReason: err.Error(),
			}
		}
	}
	return protocol.ApplyWorkspaceEditResponse{Applied: true}
}
