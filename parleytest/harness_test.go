package parleytest_test

import (
	"context"
	"testing"
	"time"

	"github.com/parley-lsp/parley"
	"github.com/parley-lsp/parley/parleytest"
	"github.com/parley-lsp/parley/protocol"
)

func TestScriptedServerAnswersHandshake(t *testing.T) {
	srv, tr := parleytest.NewServer(t)

	c := parley.NewClient("harness-test", "0.0.1")
	if err := parley.Connect(c, parley.WithTransport(tr)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if got := srv.Received(protocol.MethodInitialize); len(got) != 1 {
		t.Errorf("initialize recorded %d times", len(got))
	}
	srv.WaitFor(protocol.MethodInitialized, time.Second)
}

func TestScriptedResponder(t *testing.T) {
	srv, tr := parleytest.NewServer(t)
	srv.RespondWith(protocol.MethodCompletion, &protocol.CompletionList{
		Items: []protocol.CompletionItem{{Label: "Println"}, {Label: "Printf"}},
	})

	c := parley.NewClient("harness-test", "0.0.1")
	if err := parley.Connect(c, parley.WithTransport(tr)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	list, err := c.Server().Completion(context.Background(), &protocol.CompletionParams{})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	parleytest.AssertCompletionContains(t, list, "Println")
	parleytest.AssertCompletionContains(t, list, "Printf")
}

func TestRecordedTrafficOrder(t *testing.T) {
	srv, tr := parleytest.NewServer(t)

	c := parley.NewClient("harness-test", "0.0.1")
	if err := parley.Connect(c, parley.WithTransport(tr)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	uri := protocol.DocumentURI(parleytest.FileURI("/a.txt"))
	if _, err := c.Documents().Open(ctx, uri, "plaintext", "x"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Documents().Close(ctx, uri); err != nil {
		t.Fatalf("Close: %v", err)
	}
	srv.WaitFor(protocol.MethodDidClose, time.Second)

	var methods []string
	for _, r := range srv.Received("") {
		switch r.Method {
		case protocol.MethodDidOpen, protocol.MethodDidClose:
			methods = append(methods, r.Method)
		}
	}
	if len(methods) != 2 || methods[0] != protocol.MethodDidOpen || methods[1] != protocol.MethodDidClose {
		t.Errorf("recorded order = %v", methods)
	}
}

func TestRestrictedCapabilities(t *testing.T) {
	srv, tr := parleytest.NewServer(t, parleytest.WithCapabilities(protocol.ServerCapabilities{}))
	_ = srv

	c := parley.NewClient("harness-test", "0.0.1")
	if err := parley.Connect(c, parley.WithTransport(tr)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if c.ServerCapabilities().HoverProvider != nil {
		t.Error("restricted server still advertises hover")
	}
}
