// Package parley is a batteries-included Go toolkit for driving Language
// Server Protocol (LSP) servers. It spawns or dials a server, runs the
// initialize handshake, and exposes typed request wrappers, client-owned
// document synchronization, composable middleware, typed settings with
// hot-reload push, and first-class testing utilities.
//
// A minimal client needs only a few lines:
//
//	c := parley.NewClient("my-editor", "0.1.0")
//	parley.Connect(c, parley.WithCommand("gopls"))
//	hover, _ := c.Server().Hover(ctx, params)
//
// See the examples/ directory for progressively more complete clients.
package parley
