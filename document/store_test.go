package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parley-lsp/parley/protocol"
)

// recordingNotifier captures every notification the store emits.
type recordingNotifier struct {
	methods []string
	params  []interface{}
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, method string, params interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.methods = append(r.methods, method)
	r.params = append(r.params, params)
	return nil
}

func (r *recordingNotifier) last() (string, interface{}) {
	if len(r.methods) == 0 {
		return "", nil
	}
	return r.methods[len(r.methods)-1], r.params[len(r.params)-1]
}

func TestStoreOpenEmitsDidOpen(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)
	ctx := context.Background()

	doc, err := s.Open(ctx, "file:///a.txt", "plaintext", "hello")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Version() != 1 {
		t.Errorf("new document version = %d, want 1", doc.Version())
	}

	method, params := n.last()
	if method != protocol.MethodDidOpen {
		t.Fatalf("emitted %q, want didOpen", method)
	}
	p := params.(*protocol.DidOpenTextDocumentParams)
	if p.TextDocument.Text != "hello" || p.TextDocument.LanguageID != "plaintext" {
		t.Errorf("didOpen payload = %+v", p.TextDocument)
	}
}

func TestStoreOpenTwice(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)
	ctx := context.Background()

	if _, err := s.Open(ctx, "file:///a.txt", "plaintext", "x"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Open(ctx, "file:///a.txt", "plaintext", "y"); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open error = %v, want ErrAlreadyOpen", err)
	}
}

func TestStoreOpenNotifyFailureRollsBack(t *testing.T) {
	n := &recordingNotifier{err: errors.New("pipe broken")}
	s := NewStore(n)

	if _, err := s.Open(context.Background(), "file:///a.txt", "plaintext", "x"); err == nil {
		t.Fatal("expected Open to fail when notify fails")
	}
	if s.Get("file:///a.txt") != nil {
		t.Error("failed Open left document in store")
	}
}

func TestStoreChangeBumpsVersionAndEmits(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)
	ctx := context.Background()

	if _, err := s.Open(ctx, "file:///a.txt", "plaintext", "hello world"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	rng := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 6},
		End:   protocol.Position{Line: 0, Character: 11},
	}
	if err := s.Edit(ctx, "file:///a.txt", &rng, "parley"); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	doc := s.Get("file:///a.txt")
	if got := doc.Text(); got != "hello parley" {
		t.Errorf("text = %q, want %q", got, "hello parley")
	}
	if doc.Version() != 2 {
		t.Errorf("version = %d, want 2", doc.Version())
	}

	method, params := n.last()
	if method != protocol.MethodDidChange {
		t.Fatalf("emitted %q, want didChange", method)
	}
	p := params.(*protocol.DidChangeTextDocumentParams)
	if p.TextDocument.Version != 2 {
		t.Errorf("didChange version = %d, want 2", p.TextDocument.Version)
	}
}

func TestStoreChangeNotOpen(t *testing.T) {
	s := NewStore(&recordingNotifier{})
	err := s.Edit(context.Background(), "file:///missing.txt", nil, "x")
	if !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Edit on closed doc = %v, want ErrNotOpen", err)
	}
}

func TestStoreCloseEmitsDidClose(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)
	ctx := context.Background()

	if _, err := s.Open(ctx, "file:///a.txt", "plaintext", "x"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var closed []protocol.DocumentURI
	s.OnClose(func(uri protocol.DocumentURI) { closed = append(closed, uri) })

	if err := s.Close(ctx, "file:///a.txt"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Get("file:///a.txt") != nil {
		t.Error("document still in store after Close")
	}
	if method, _ := n.last(); method != protocol.MethodDidClose {
		t.Errorf("emitted %q, want didClose", method)
	}
	if len(closed) != 1 {
		t.Errorf("OnClose fired %d times, want 1", len(closed))
	}
}

func TestStoreSaveIncludesText(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)
	ctx := context.Background()

	if _, err := s.Open(ctx, "file:///a.txt", "plaintext", "content"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(ctx, "file:///a.txt", true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, params := n.last()
	p := params.(*protocol.DidSaveTextDocumentParams)
	if p.Text == nil || *p.Text != "content" {
		t.Errorf("didSave text = %v, want %q", p.Text, "content")
	}
}

func TestApplyWorkspaceEdit(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)
	ctx := context.Background()

	if _, err := s.Open(ctx, "file:///a.txt", "plaintext", "one two three"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	resp := s.ApplyWorkspaceEdit(ctx, protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentURI][]protocol.TextEdit{
			"file:///a.txt": {
				{
					Range: protocol.Range{
						Start: protocol.Position{Line: 0, Character: 0},
						End:   protocol.Position{Line: 0, Character: 3},
					},
					NewText: "ONE",
				},
				{
					Range: protocol.Range{
						Start: protocol.Position{Line: 0, Character: 8},
						End:   protocol.Position{Line: 0, Character: 13},
					},
					NewText: "THREE",
				},
			},
		},
	})
	if !resp.Applied {
		t.Fatalf("edit not applied: %s", resp.FailureReason)
	}
	if got := s.Get("file:///a.txt").Text(); got != "ONE two THREE" {
		t.Errorf("text after edit = %q, want %q", got, "ONE two THREE")
	}
	if method, _ := n.last(); method != protocol.MethodDidChange {
		t.Errorf("edit did not mirror a didChange, last = %q", method)
	}
}

func TestApplyWorkspaceEditUnopenedDocument(t *testing.T) {
	s := NewStore(&recordingNotifier{})
	resp := s.ApplyWorkspaceEdit(context.Background(), protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentURI][]protocol.TextEdit{
			"file:///missing.txt": {{NewText: "x"}},
		},
	})
	if resp.Applied {
		t.Fatal("edit against unopened document was applied")
	}
	if resp.FailureReason == "" {
		t.Error("missing failure reason")
	}
}

func TestEditsToChangesOrdering(t *testing.T) {
	edits := []protocol.TextEdit{
		{Range: protocol.Range{Start: protocol.Position{Line: 0, Character: 0}, End: protocol.Position{Line: 0, Character: 1}}, NewText: "a"},
		{Range: protocol.Range{Start: protocol.Position{Line: 2, Character: 0}, End: protocol.Position{Line: 2, Character: 1}}, NewText: "c"},
		{Range: protocol.Range{Start: protocol.Position{Line: 1, Character: 0}, End: protocol.Position{Line: 1, Character: 1}}, NewText: "b"},
	}
	changes := EditsToChanges(edits)
	if len(changes) != 3 {
		t.Fatalf("len = %d", len(changes))
	}
	// Back-to-front so sequential application never shifts later ranges.
	if changes[0].Range.Start.Line != 2 || changes[2].Range.Start.Line != 0 {
		data, _ := json.Marshal(changes)
		t.Errorf("changes not ordered back to front: %s", data)
	}
}
