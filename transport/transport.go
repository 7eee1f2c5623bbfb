// Package transport provides pluggable I/O transports for connecting to LSP
// servers. Supported transports include a spawned subprocess (the common
// case), stdio, TCP, Unix domain sockets, named pipes, and WebSocket.
package transport

import "io"

// Transport provides a bidirectional byte stream for JSON-RPC communication.
// Each implementation wraps a specific communication mechanism (subprocess
// pipes, TCP, etc.) and exposes it as a simple reader/writer pair.
type Transport interface {
	io.ReadWriteCloser
}

// Func adapts a function that returns a Transport into a transport factory.
type Func func() (Transport, error)
