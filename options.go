package parley

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/parley-lsp/parley/middleware"
	"github.com/parley-lsp/parley/protocol"
	"github.com/parley-lsp/parley/transport"
)

// Option configures a Client during construction.
type Option func(*Client)

// ConnectOption configures how the client reaches the server.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	transport        transport.Transport
	transportFactory func() (transport.Transport, error)
}

// WithCommand spawns the language server as a subprocess and connects over
// its stdin/stdout.
func WithCommand(name string, args ...string) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transportFactory = func() (transport.Transport, error) {
			return transport.Command(name, args)
		}
	}
}

// WithCommandOptions is WithCommand with explicit subprocess options.
func WithCommandOptions(name string, args []string, opts ...transport.CommandOption) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transportFactory = func() (transport.Transport, error) {
			return transport.Command(name, args, opts...)
		}
	}
}

// WithStdio connects over the client process's own stdin/stdout. Useful for
// proxy setups where the server end of the pipes is wired up externally.
func WithStdio() ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transport = transport.Stdio()
	}
}

// WithTransport connects over a specific transport.
func WithTransport(t transport.Transport) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transport = t
	}
}

// WithTCP dials a server listening on a TCP address (e.g., "localhost:9257").
func WithTCP(addr string) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transportFactory = func() (transport.Transport, error) {
			return transport.DialTCP(addr)
		}
	}
}

// WithSocket dials a server listening on a Unix domain socket.
func WithSocket(path string) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transportFactory = func() (transport.Transport, error) {
			return transport.DialSocket(path)
		}
	}
}

// WithPipe dials a server listening on a named pipe (or Unix socket on
// non-Windows).
func WithPipe(name string) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transportFactory = func() (transport.Transport, error) {
			return transport.DialPipe(name)
		}
	}
}

// WithWebSocket dials a WebSocket-hosted server (e.g., "ws://localhost:9258/lsp").
func WithWebSocket(url string) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.transportFactory = func() (transport.Transport, error) {
			return transport.DialWebSocket(url, "")
		}
	}
}

// WithLogger sets a custom slog logger on the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMiddleware adds middleware to the client's call and dispatch chains.
// Middleware is applied in order: the first middleware is outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithRootURI sets the workspace root sent during initialize.
func WithRootURI(uri protocol.DocumentURI) Option {
	return func(c *Client) {
		c.rootURI = &uri
	}
}

// WithWorkspaceFolders sets the workspace folders sent during initialize.
func WithWorkspaceFolders(folders ...protocol.WorkspaceFolder) Option {
	return func(c *Client) {
		c.workspaceFolders = folders
	}
}

// WithInitializationOptions sets the opaque initializationOptions payload
// sent during initialize.
func WithInitializationOptions(v interface{}) Option {
	return func(c *Client) {
		c.initOptions = v
	}
}

// FromArgs parses os.Args to determine how to reach the server. Supported
// flags:
//
//	--cmd BINARY [--args "A B C"]
//	--tcp ADDR
//	--socket PATH
//	--pipe NAME
//	--ws URL
//	--stdio
func FromArgs() ConnectOption {
	return func(cfg *connectConfig) {
		args := os.Args[1:]
		for i := 0; i < len(args); i++ {
			arg := args[i]
			nextArg := func() string {
				if i+1 < len(args) {
					i++
					return args[i]
				}
				return ""
			}
			switch {
			case arg == "--stdio":
				cfg.transport = transport.Stdio()
				return
			case arg == "--cmd":
				bin := nextArg()
				if bin == "" {
					fmt.Fprintln(os.Stderr, "parley: --cmd requires a binary name")
					os.Exit(1)
				}
				var cmdArgs []string
				if i+1 < len(args) && args[i+1] == "--args" {
					i++
					cmdArgs = strings.Fields(nextArg())
				}
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.Command(bin, cmdArgs)
				}
				return
			case strings.HasPrefix(arg, "--cmd="):
				bin := strings.TrimPrefix(arg, "--cmd=")
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.Command(bin, nil)
				}
				return
			case arg == "--tcp":
				addr := nextArg()
				if addr == "" {
					fmt.Fprintln(os.Stderr, "parley: --tcp requires an address (e.g., localhost:9257)")
					os.Exit(1)
				}
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialTCP(addr)
				}
				return
			case strings.HasPrefix(arg, "--tcp="):
				addr := strings.TrimPrefix(arg, "--tcp=")
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialTCP(addr)
				}
				return
			case arg == "--socket":
				path := nextArg()
				if path == "" {
					fmt.Fprintln(os.Stderr, "parley: --socket requires a path")
					os.Exit(1)
				}
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialSocket(path)
				}
				return
			case strings.HasPrefix(arg, "--socket="):
				path := strings.TrimPrefix(arg, "--socket=")
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialSocket(path)
				}
				return
			case arg == "--pipe":
				name := nextArg()
				if name == "" {
					fmt.Fprintln(os.Stderr, "parley: --pipe requires a name")
					os.Exit(1)
				}
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialPipe(name)
				}
				return
			case strings.HasPrefix(arg, "--pipe="):
				name := strings.TrimPrefix(arg, "--pipe=")
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialPipe(name)
				}
				return
			case arg == "--ws":
				url := nextArg()
				if url == "" {
					fmt.Fprintln(os.Stderr, "parley: --ws requires a URL (e.g., ws://localhost:9258/lsp)")
					os.Exit(1)
				}
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialWebSocket(url, "")
				}
				return
			case strings.HasPrefix(arg, "--ws="):
				url := strings.TrimPrefix(arg, "--ws=")
				cfg.transportFactory = func() (transport.Transport, error) {
					return transport.DialWebSocket(url, "")
				}
				return
			}
		}
		// Default: stdio
		cfg.transport = transport.Stdio()
	}
}
