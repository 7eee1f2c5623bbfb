package document

import (
	"sync"

	"github.com/parley-lsp/parley/protocol"
)

// Document is a single text document whose content is owned by the client.
// The store mutates it and mirrors every mutation to the server.
type Document struct {
	mu         sync.RWMutex
	uri        protocol.DocumentURI
	languageID string
	version    int32
	text       string
}

// New creates a Document with version 1 and the given initial content.
func New(uri protocol.DocumentURI, languageID, text string) *Document {
	return &Document{
		uri:        uri,
		languageID: languageID,
		version:    1,
		text:       text,
	}
}

// URI returns the document's URI.
func (d *Document) URI() protocol.DocumentURI {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.uri
}

// LanguageID returns the LSP language identifier (e.g., "go", "python").
func (d *Document) LanguageID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.languageID
}

// Version returns the document's current version number.
func (d *Document) Version() int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Text returns the full text content of the document.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// LineAt returns the text of the given zero-based line number.
func (d *Document) LineAt(line uint32) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return LineAt(d.text, line)
}

// WordAt returns the word under the given position.
func (d *Document) WordAt(pos protocol.Position) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return WordAt(d.text, pos)
}

// OffsetAt converts an LSP position to a byte offset in the document text.
func (d *Document) OffsetAt(pos protocol.Position) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return OffsetAt(d.text, pos)
}

// PositionAt converts a byte offset to an LSP position.
func (d *Document) PositionAt(offset int) protocol.Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return PositionAt(d.text, offset)
}

// Item returns the TextDocumentItem describing the document's current state.
func (d *Document) Item() protocol.TextDocumentItem {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return protocol.TextDocumentItem{
		URI:        d.uri,
		LanguageID: d.languageID,
		Version:    d.version,
		Text:       d.text,
	}
}

// Identifier returns the document's versioned identifier.
func (d *Document) Identifier() protocol.VersionedTextDocumentIdentifier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return protocol.VersionedTextDocumentIdentifier{
		TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: d.uri},
		Version:                d.version,
	}
}

// applyChanges mutates the document content, bumps the version, and returns
// the new versioned identifier for the matching didChange notification.
func (d *Document) applyChanges(changes []protocol.TextDocumentContentChangeEvent) protocol.VersionedTextDocumentIdentifier {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = ApplyChanges(d.text, changes)
	d.version++
	return protocol.VersionedTextDocumentIdentifier{
		TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: d.uri},
		Version:                d.version,
	}
}
