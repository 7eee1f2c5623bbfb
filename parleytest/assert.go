package parleytest

import (
	"strings"
	"testing"

	"github.com/parley-lsp/parley/document"
	"github.com/parley-lsp/parley/protocol"
)

// AssertHoverContains asserts that the hover result contains the expected substring.
func AssertHoverContains(t testing.TB, hover *protocol.Hover, substr string) {
	t.Helper()
	if hover == nil {
		t.Fatal("hover result is nil")
	}
	if !strings.Contains(hover.Contents.Value, substr) {
		t.Errorf("hover contents %q does not contain %q", hover.Contents.Value, substr)
	}
}

// AssertCompletionContains asserts that the completion list contains an item with the given label.
func AssertCompletionContains(t testing.TB, list *protocol.CompletionList, label string) {
	t.Helper()
	if list == nil {
		t.Fatal("completion list is nil")
	}
	for _, item := range list.Items {
		if item.Label == label {
			return
		}
	}
	labels := make([]string, len(list.Items))
	for i, item := range list.Items {
		labels[i] = item.Label
	}
	t.Errorf("completion list does not contain %q, got: %v", label, labels)
}

// AssertLocationCount asserts the number of locations returned.
func AssertLocationCount(t testing.TB, locations []protocol.Location, count int) {
	t.Helper()
	if len(locations) != count {
		t.Errorf("expected %d locations, got %d", count, len(locations))
	}
}

// AssertDocumentText asserts the current content of an open document.
func AssertDocumentText(t testing.TB, store *document.Store, uri string, want string) {
	t.Helper()
	doc := store.Get(protocol.DocumentURI(uri))
	if doc == nil {
		t.Fatalf("document %s is not open", uri)
	}
	if got := doc.Text(); got != want {
		t.Errorf("document %s text = %q, want %q", uri, got, want)
	}
}

// AssertDocumentVersion asserts the current version of an open document.
func AssertDocumentVersion(t testing.TB, store *document.Store, uri string, want int32) {
	t.Helper()
	doc := store.Get(protocol.DocumentURI(uri))
	if doc == nil {
		t.Fatalf("document %s is not open", uri)
	}
	if got := doc.Version(); got != want {
		t.Errorf("document %s version = %d, want %d", uri, got, want)
	}
}
