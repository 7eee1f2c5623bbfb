package transport

import (
	"sync"

	"golang.org/x/net/websocket"
)

// DialWebSocket connects to a WebSocket-hosted language server, e.g.
// "ws://localhost:9258/lsp". origin is sent in the handshake; pass "" for a
// default of "http://localhost/".
func DialWebSocket(url, origin string) (Transport, error) {
	if origin == "" {
		origin = "http://localhost/"
	}
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: ws}, nil
}

type wsTransport struct {
	conn *websocket.Conn
	rest []byte

	closeOnce sync.Once
	closeErr  error
}

func (w *wsTransport) Read(p []byte) (int, error) {
	if len(w.rest) == 0 {
		var msg []byte
		if err := websocket.Message.Receive(w.conn, &msg); err != nil {
			return 0, err
		}
		w.rest = msg
	}
	n := copy(p, w.rest)
	w.rest = w.rest[n:]
	return n, nil
}

func (w *wsTransport) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(w.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsTransport) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
