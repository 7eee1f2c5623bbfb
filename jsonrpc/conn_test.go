package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

// testPeer plays the server side of a connection over in-process pipes.
type testPeer struct {
	t     *testing.T
	codec *Codec

	closeWrite func() // severs the stream the conn reads from
}

func newConnPair(t *testing.T, handler Handler, notif NotificationHandler) (*Conn, *testPeer) {
	t.Helper()
	connIn, peerOut := io.Pipe()
	peerIn, connOut := io.Pipe()

	conn := NewConn(NewCodec(connIn, connOut), handler, notif)
	peer := &testPeer{
		t:          t,
		codec:      NewCodec(peerIn, peerOut),
		closeWrite: func() { peerOut.Close() },
	}

	t.Cleanup(func() {
		conn.Close()
		peerOut.Close()
		connOut.Close()
	})
	return conn, peer
}

// readRequest reads one frame and decodes it as a request.
func (p *testPeer) readRequest() *Request {
	p.t.Helper()
	data, err := p.codec.Read()
	if err != nil {
		p.t.Fatalf("peer read: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		p.t.Fatalf("peer decode: %v", err)
	}
	req, ok := msg.(*Request)
	if !ok {
		p.t.Fatalf("peer expected request, got %T", msg)
	}
	return req
}

func (p *testPeer) readNotification() *Notification {
	p.t.Helper()
	data, err := p.codec.Read()
	if err != nil {
		p.t.Fatalf("peer read: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		p.t.Fatalf("peer decode: %v", err)
	}
	n, ok := msg.(*Notification)
	if !ok {
		p.t.Fatalf("peer expected notification, got %T", msg)
	}
	return n
}

func (p *testPeer) send(v interface{}) {
	p.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		p.t.Fatalf("peer marshal: %v", err)
	}
	if err := p.codec.Write(data); err != nil {
		p.t.Fatalf("peer write: %v", err)
	}
}

func (p *testPeer) respond(id ID, result interface{}) {
	p.send(NewResponse(id, result, nil))
}

func TestCallReceivesMatchingResponse(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	go func() {
		req := peer.readRequest()
		peer.respond(req.ID, map[string]string{"greeting": "hello"})
	}()

	var result struct {
		Greeting string `json:"greeting"`
	}
	if err := conn.CallInto(context.Background(), "test/echo", nil, &result); err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if result.Greeting != "hello" {
		t.Errorf("result = %+v", result)
	}
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	ids := make(chan int64, 2)
	go func() {
		for i := 0; i < 2; i++ {
			req := peer.readRequest()
			ids <- req.ID.Value().(int64)
			peer.respond(req.ID, nil)
		}
	}()

	for i := 0; i < 2; i++ {
		if _, err := conn.Call(context.Background(), "test/seq", nil); err != nil {
			t.Fatalf("Call: %v", err)
		}
	}

	first, second := <-ids, <-ids
	if second <= first {
		t.Errorf("ids not increasing: %d then %d", first, second)
	}
}

func TestConcurrentCallsCorrelateOutOfOrderResponses(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	const n = 8
	go func() {
		reqs := make([]*Request, 0, n)
		for i := 0; i < n; i++ {
			reqs = append(reqs, peer.readRequest())
		}
		// Answer in reverse arrival order; each caller must still get its own.
		for i := n - 1; i >= 0; i-- {
			var echo struct {
				Index int `json:"index"`
			}
			json.Unmarshal(reqs[i].Params, &echo)
			peer.respond(reqs[i].ID, echo)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var result struct {
				Index int `json:"index"`
			}
			err := conn.CallInto(context.Background(), "test/echo", map[string]int{"index": i}, &result)
			if err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if result.Index != i {
				t.Errorf("call %d got response %d", i, result.Index)
			}
		}(i)
	}
	wg.Wait()
}

func TestErrorResponseReachesCaller(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	go func() {
		req := peer.readRequest()
		peer.send(NewResponse(req.ID, nil, &Error{Code: CodeMethodNotFound, Message: "nope"}))
	}()

	var result map[string]interface{}
	err := conn.CallInto(context.Background(), "test/missing", nil, &result)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if rpcErr.Code != CodeMethodNotFound || rpcErr.Message != "nope" {
		t.Errorf("error = %+v", rpcErr)
	}
	if result != nil {
		t.Errorf("result touched on error response: %v", result)
	}
}

func TestNotificationDeliveredBeforeLaterResponse(t *testing.T) {
	notified := make(chan string, 1)
	conn, peer := newConnPair(t, nil, func(_ context.Context, method string, _ RawMessage) {
		select {
		case notified <- method:
		default:
		}
	})

	go func() {
		req := peer.readRequest()
		// Stream order: notification first, then the response.
		peer.send(&Notification{JSONRPC: Version, Method: "test/event"})
		peer.respond(req.ID, nil)
	}()

	if _, err := conn.Call(context.Background(), "test/thing", nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	// Dispatch is in stream order: by the time the call unblocked, the
	// notification callback must already have run.
	select {
	case method := <-notified:
		if method != "test/event" {
			t.Errorf("notified method = %q", method)
		}
	default:
		t.Error("response delivered before earlier notification")
	}
}

func TestUnknownResponseIDIsIgnored(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	go func() {
		req := peer.readRequest()
		peer.respond(IntID(9999), "stray")
		peer.respond(req.ID, "real")
	}()

	var result string
	if err := conn.CallInto(context.Background(), "test/thing", nil, &result); err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if result != "real" {
		t.Errorf("result = %q", result)
	}
}

func TestReadFailureWakesAllPendingCalls(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = conn.Call(context.Background(), "test/hang", nil)
		}(i)
	}
	for i := 0; i < n; i++ {
		peer.readRequest()
	}

	peer.closeWrite()
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			t.Errorf("call %d returned nil error after transport death", i)
		}
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Done not closed after transport death")
	}
	if conn.Err() == nil {
		t.Error("Err is nil after transport death")
	}

	// The connection is terminal: later calls fail immediately.
	if _, err := conn.Call(context.Background(), "test/late", nil); err == nil {
		t.Error("call on dead connection succeeded")
	}
}

func TestCloseWakesBlockedCallers(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Call(context.Background(), "test/hang", nil)
		done <- err
	}()
	peer.readRequest()

	conn.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrConnClosed) {
			t.Errorf("err = %v, want ErrConnClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("caller still blocked after Close")
	}
}

func TestContextCancelAbandonsCall(t *testing.T) {
	var cancelled []ID
	var mu sync.Mutex
	conn, peer := newConnPair(t, nil, nil)
	conn.SetCancelNotifier(func(id ID) {
		mu.Lock()
		cancelled = append(cancelled, id)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := conn.Call(ctx, "test/slow", nil)
		done <- err
	}()
	req := peer.readRequest()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	mu.Lock()
	if len(cancelled) != 1 || cancelled[0].Value() != req.ID.Value() {
		t.Errorf("cancel notifier got %v, want id %v", cancelled, req.ID.Value())
	}
	mu.Unlock()

	// The late response for the abandoned id is absorbed silently and the
	// connection keeps working.
	go func() {
		peer.respond(req.ID, "late")
		next := peer.readRequest()
		peer.respond(next.ID, "fresh")
	}()

	var result string
	if err := conn.CallInto(context.Background(), "test/next", nil, &result); err != nil {
		t.Fatalf("CallInto after cancel: %v", err)
	}
	if result != "fresh" {
		t.Errorf("result = %q", result)
	}
}

func TestNotifyWritesNotification(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)

	go func() {
		if err := conn.Notify(context.Background(), "test/ping", map[string]int{"n": 1}); err != nil {
			t.Errorf("Notify: %v", err)
		}
	}()

	n := peer.readNotification()
	if n.Method != "test/ping" {
		t.Errorf("method = %q", n.Method)
	}
}

func TestInboundRequestHandledAndAnswered(t *testing.T) {
	handler := func(_ context.Context, method string, params RawMessage) (interface{}, error) {
		if method != "peer/ask" {
			return nil, &Error{Code: CodeMethodNotFound, Message: method}
		}
		return "answer", nil
	}
	conn, peer := newConnPair(t, handler, nil)
	conn.Start()

	peer.send(&Request{JSONRPC: Version, ID: IntID(1), Method: "peer/ask"})

	data, err := peer.codec.Read()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp, ok := msg.(*Response)
	if !ok {
		t.Fatalf("expected response, got %T", msg)
	}
	var result string
	if err := json.Unmarshal(resp.Result, &result); err != nil || result != "answer" {
		t.Errorf("result = %s (err %v)", resp.Result, err)
	}
}

func TestInboundRequestWithoutHandlerIsRejected(t *testing.T) {
	conn, peer := newConnPair(t, nil, nil)
	conn.Start()

	peer.send(&Request{JSONRPC: Version, ID: IntID(7), Method: "peer/ask"})

	data, err := peer.codec.Read()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	msg, _ := DecodeMessage(data)
	resp, ok := msg.(*Response)
	if !ok {
		t.Fatalf("expected response, got %T", msg)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error = %+v, want method-not-found", resp.Error)
	}
}

func TestCallAfterCloseFailsFast(t *testing.T) {
	conn, _ := newConnPair(t, nil, nil)
	conn.Close()

	start := time.Now()
	_, err := conn.Call(context.Background(), "test/thing", nil)
	if !errors.Is(err, ErrConnClosed) {
		t.Fatalf("err = %v, want ErrConnClosed", err)
	}
	if time.Since(start) > time.Second {
		t.Error("call on closed connection blocked")
	}
}

func TestDecodeMessageKinds(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"m"}`, "*jsonrpc.Request"},
		{`{"jsonrpc":"2.0","method":"m"}`, "*jsonrpc.Notification"},
		{`{"jsonrpc":"2.0","id":1,"result":null}`, "*jsonrpc.Response"},
		{`{"jsonrpc":"2.0","id":"abc","result":42}`, "*jsonrpc.Response"},
	}
	for _, tt := range tests {
		msg, err := DecodeMessage([]byte(tt.in))
		if err != nil {
			t.Fatalf("DecodeMessage(%s): %v", tt.in, err)
		}
		if got := fmt.Sprintf("%T", msg); got != tt.want {
			t.Errorf("DecodeMessage(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
