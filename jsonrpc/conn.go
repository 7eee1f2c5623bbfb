// Package jsonrpc implements a client-side JSON-RPC 2.0 connection over
// Content-Length framed streams, as specified by the LSP base protocol.
// It correlates an arbitrary number of concurrent outstanding requests
// against the single ordered inbound stream of a language server.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrConnClosed is returned to callers blocked in Call when the connection is
// closed, either explicitly via Close or because the transport failed.
var ErrConnClosed = errors.New("jsonrpc: connection closed")

// dispatchQueueSize bounds the in-order inbound queue. The reader applies
// backpressure to the server rather than buffer unboundedly when a
// notification handler is slow.
const dispatchQueueSize = 64

// Handler processes an incoming server-to-client request and returns its result.
type Handler func(ctx context.Context, method string, params RawMessage) (result interface{}, err error)

// NotificationHandler processes an incoming server-to-client notification.
// It runs on the connection's dispatch goroutine: notifications and response
// resolution are delivered strictly in stream order, so a handler that blocks
// stalls delivery of every later inbound message. Handlers must not issue
// blocking Calls on the same connection.
type NotificationHandler func(ctx context.Context, method string, params RawMessage)

// Conn is a client JSON-RPC 2.0 connection. The zero value is not usable;
// create one with NewConn. All methods are safe for concurrent use.
type Conn struct {
	codec   *Codec
	handler Handler
	notif   NotificationHandler
	logger  *slog.Logger

	nextID atomic.Int64

	// onCancel, when set, is invoked with the request id of a Call abandoned
	// by context cancellation, after the id is unregistered.
	onCancel func(id ID)

	// mu guards pending and failure. Each pending channel is buffered so the
	// dispatcher never blocks delivering a response, and is never closed.
	mu      sync.Mutex
	pending map[int64]chan *Response
	failure error

	inbound chan Message

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn creates a connection over the given codec. handler receives
// server-to-client requests (may be nil to reject them all); notif receives
// server-to-client notifications (may be nil to drop them). The background
// reader starts lazily on the first Call or Notify.
func NewConn(codec *Codec, handler Handler, notif NotificationHandler) *Conn {
	return &Conn{
		codec:   codec,
		handler: handler,
		notif:   notif,
		logger:  slog.Default(),
		pending: make(map[int64]chan *Response),
		inbound: make(chan Message, dispatchQueueSize),
		done:    make(chan struct{}),
	}
}

// SetLogger replaces the connection's logger. Must be called before the first
// Call or Notify.
func (c *Conn) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetCancelNotifier registers a callback fired when a Call is abandoned
// because its context was cancelled. LSP clients use it to send
// $/cancelRequest; the jsonrpc layer itself attaches no meaning to
// cancellation beyond dropping the in-flight entry. Must be called before
// the first Call.
func (c *Conn) SetCancelNotifier(fn func(id ID)) {
	c.onCancel = fn
}

// Start launches the background reader if it is not already running.
// Call and Notify start it implicitly; Start is for clients that want to
// receive notifications before issuing any request.
func (c *Conn) Start() {
	c.startOnce.Do(func() {
		go c.readLoop()
		go c.dispatchLoop()
	})
}

// Call sends a request and blocks until the matching response arrives, ctx is
// done, or the connection fails. Request IDs are allocated from a
// monotonically increasing counter and never reused for the lifetime of the
// connection. If ctx is cancelled the in-flight entry is dropped and a
// late-arriving response for that id is discarded silently.
func (c *Conn) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	c.Start()

	paramsData, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling params for %s: %w", method, err)
	}

	id := c.nextID.Add(1)
	req := &Request{
		JSONRPC: Version,
		ID:      IntID(id),
		Method:  method,
		Params:  paramsData,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request %s: %w", method, err)
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.failure != nil {
		err := c.failure
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.codec.Write(data); err != nil {
		c.unregister(id)
		return nil, fmt.Errorf("writing request %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.unregister(id)
		if c.onCancel != nil {
			c.onCancel(IntID(id))
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.err()
	}
}

// CallInto sends a request and decodes a successful result into result.
// A response carrying an error object is returned as *Error without touching
// result; a success payload that does not match result's type is a decode
// error. A nil result discards the payload.
func (c *Conn) CallInto(ctx context.Context, method string, params, result interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && len(resp.Result) > 0 && string(resp.Result) != "null" {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a notification (no response expected).
func (c *Conn) Notify(ctx context.Context, method string, params interface{}) error {
	c.Start()

	select {
	case <-c.done:
		return c.err()
	default:
	}

	paramsData, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("marshaling params for %s: %w", method, err)
	}
	notif := &Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  paramsData,
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshaling notification %s: %w", method, err)
	}
	return c.codec.Write(data)
}

// Close terminates the connection and wakes every blocked caller with
// ErrConnClosed. Safe to call multiple times.
func (c *Conn) Close() {
	c.fail(ErrConnClosed)
}

// Done is closed when the connection has terminated, whether by Close or by
// a transport failure.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the terminal connection error, or nil while the connection is
// still live. After Done is closed it is ErrConnClosed or the wrapped
// transport error that killed the reader.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

func (c *Conn) err() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrConnClosed
}

// fail records the terminal error, closes done, and clears the pending table.
// Blocked callers wake via done and observe the error; the first failure wins.
func (c *Conn) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.failure = err
		c.pending = make(map[int64]chan *Response)
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Conn) unregister(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop is the single background reader. It consumes frames in stream
// order and hands responses and notifications to the dispatch queue. Any read
// or framing error is fatal to the whole connection: the stream is
// desynchronized, so the connection transitions to a failed state and every
// in-flight caller is woken rather than left blocked.
func (c *Conn) readLoop() {
	for {
		data, err := c.codec.Read()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.fail(fmt.Errorf("jsonrpc: reading message: %w", err))
			}
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			c.logger.Warn("skipping undecodable message", "error", err)
			continue
		}

		switch m := msg.(type) {
		case *Request:
			// Server-to-client requests run on their own goroutine so a slow
			// client handler cannot stall response delivery.
			go c.handleRequest(m)
		default:
			select {
			case c.inbound <- msg:
			case <-c.done:
				return
			}
		}
	}
}

// dispatchLoop drains the inbound queue on a single goroutine, preserving
// stream order between notifications and response resolution.
func (c *Conn) dispatchLoop() {
	ctx := context.Background()
	for {
		select {
		case msg := <-c.inbound:
			switch m := msg.(type) {
			case *Response:
				c.handleResponse(m)
			case *Notification:
				if c.notif != nil {
					c.notif(ctx, m.Method, m.Params)
				}
			}
		case <-c.done:
			return
		}
	}
}

// handleResponse resolves the in-flight request matching the response id.
// A response whose id matches nothing is a protocol violation by the server,
// but it corrupts no other in-flight state: log it and keep reading. This
// also quietly absorbs late responses to cancelled requests.
func (c *Conn) handleResponse(resp *Response) {
	id, ok := resp.ID.Value().(int64)
	if !ok {
		c.logger.Warn("dropping response with non-integer id", "id", resp.ID.Value())
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping response with no matching request", "id", id)
		return
	}
	ch <- resp
}

func (c *Conn) handleRequest(req *Request) {
	var result interface{}
	var err error
	if c.handler != nil {
		result, err = c.handler(context.Background(), req.Method, req.Params)
	} else {
		err = &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("client does not handle %s", req.Method)}
	}

	resp := NewResponse(req.ID, result, err)
	data, merr := json.Marshal(resp)
	if merr != nil {
		c.logger.Warn("failed to marshal response", "method", req.Method, "error", merr)
		return
	}
	if werr := c.codec.Write(data); werr != nil {
		c.logger.Warn("failed to write response", "method", req.Method, "error", werr)
	}
}

func marshalParams(v interface{}) (RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
