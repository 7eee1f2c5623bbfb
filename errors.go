package parley

import (
	"errors"

	"github.com/parley-lsp/parley/document"
	"github.com/parley-lsp/parley/jsonrpc"
)

var (
	// ErrNotConnected is returned by operations that require a live
	// connection before Connect has completed.
	ErrNotConnected = errors.New("parley: not connected")

	// ErrAlreadyConnected is returned by Connect when the client already has
	// a live connection.
	ErrAlreadyConnected = errors.New("parley: already connected")

	// ErrNotSupported is returned by typed request wrappers when the server
	// did not advertise the corresponding capability during initialize.
	ErrNotSupported = errors.New("parley: method not supported by server")

	// ErrConnClosed is returned to callers blocked in a request when the
	// connection is torn down underneath them.
	ErrConnClosed = jsonrpc.ErrConnClosed

	// ErrDocumentNotOpen is returned by document operations on a URI that is
	// not tracked by the store.
	ErrDocumentNotOpen = document.ErrNotOpen

	// ErrDocumentAlreadyOpen is returned when opening a URI twice.
	ErrDocumentAlreadyOpen = document.ErrAlreadyOpen
)
