package parley

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/parley-lsp/parley/jsonrpc"
	mw "github.com/parley-lsp/parley/middleware"
	"github.com/parley-lsp/parley/protocol"
	"github.com/parley-lsp/parley/transport"
)

// Connect starts the connection to the language server and runs the
// initialize handshake. See ConnectContext.
func Connect(c *Client, opts ...ConnectOption) error {
	return ConnectContext(context.Background(), c, opts...)
}

// ConnectContext establishes the transport, starts the background reader,
// and performs the initialize/initialized handshake. When it returns nil the
// client is fully operational: typed requests can be issued and
// server-to-client traffic is being dispatched.
func ConnectContext(ctx context.Context, c *Client, opts ...ConnectOption) error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if connected {
		return ErrAlreadyConnected
	}

	cfg := &connectConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.transport == nil && cfg.transportFactory != nil {
		var err error
		cfg.transport, err = cfg.transportFactory()
		if err != nil {
			return fmt.Errorf("creating transport: %w", err)
		}
	}
	if cfg.transport == nil {
		return errors.New("parley: no transport configured (use WithCommand, WithTCP, ...)")
	}

	codec := jsonrpc.NewCodec(cfg.transport, cfg.transport)

	// Wrap inbound dispatch with the middleware chain
	handler := jsonrpc.Handler(c.dispatchRequest)
	notifHandler := c.dispatchNotification
	var chain mw.Middleware
	if len(c.middlewares) > 0 {
		chain = mw.Chain(c.middlewares...)

		wrappedHandler := chain(func(ctx context.Context, method string, params interface{}) (interface{}, error) {
			return c.dispatchRequest(ctx, method, params.(jsonrpc.RawMessage))
		})
		handler = func(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
			return wrappedHandler(ctx, method, params)
		}

		wrappedNotif := chain(func(ctx context.Context, method string, params interface{}) (interface{}, error) {
			c.dispatchNotification(ctx, method, params.(jsonrpc.RawMessage))
			return nil, nil
		})
		notifHandler = func(ctx context.Context, method string, params jsonrpc.RawMessage) {
			wrappedNotif(ctx, method, params)
		}
	}

	conn := jsonrpc.NewConn(codec, handler, notifHandler)
	conn.SetLogger(c.logger)
	conn.SetCancelNotifier(func(id jsonrpc.ID) {
		go conn.Notify(context.Background(), protocol.MethodCancelRequest, &protocol.CancelParams{ID: id.Value()})
	})

	// Build the outbound paths, wrapped by the same chain.
	outbound := mw.Handler(func(ctx context.Context, method string, params interface{}) (interface{}, error) {
		resp, err := conn.Call(ctx, method, params)
		if err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	})
	outboundNotify := mw.Handler(func(ctx context.Context, method string, params interface{}) (interface{}, error) {
		return nil, conn.Notify(ctx, method, params)
	})
	if chain != nil {
		outbound = chain(outbound)
		outboundNotify = chain(outboundNotify)
	}

	c.mu.Lock()
	c.conn = conn
	c.server = newServerProxy(c)
	c.closeTransport = cfg.transport.Close
	c.outbound = outbound
	c.outboundNotify = outboundNotify
	c.mu.Unlock()

	conn.Start()

	// A subprocess server that dies takes the transport with it; surface the
	// exit and fail any blocked callers promptly.
	if exited := transport.Exited(cfg.transport); exited != nil {
		go func() {
			select {
			case err := <-exited:
				c.logger.Warn("server process exited", "error", err)
				conn.Close()
			case <-conn.Done():
			}
		}()
	}

	if err := c.initialize(ctx); err != nil {
		conn.Close()
		cfg.transport.Close()
		c.mu.Lock()
		c.conn = nil
		c.server = nil
		c.outbound = nil
		c.outboundNotify = nil
		c.mu.Unlock()
		return err
	}

	if c.settingsHolder != nil {
		if err := c.settingsHolder.start(c); err != nil {
			c.logger.Warn("settings system failed to start", "error", err)
		}
	}

	c.logger.Info("connected to language server",
		"client", c.name,
		"version", c.version,
	)
	return nil
}

// initialize runs the handshake: the initialize request must complete before
// any other request, and the initialized notification must follow the
// response before normal traffic starts.
func (c *Client) initialize(ctx context.Context) error {
	pid := int32(os.Getpid())
	params := &protocol.InitializeParams{
		ProcessID: &pid,
		ClientInfo: &protocol.ClientInfo{
			Name:    c.name,
			Version: c.version,
		},
		RootURI:               c.rootURI,
		Capabilities:          c.buildClientCapabilities(),
		InitializationOptions: c.initOptions,
		WorkspaceFolders:      c.workspaceFolders,
	}

	var result protocol.InitializeResult
	if err := c.call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	c.mu.Lock()
	c.serverCaps = result.Capabilities
	c.serverInfo = result.ServerInfo
	c.connected = true
	c.mu.Unlock()

	if err := c.Notify(ctx, protocol.MethodInitialized, &protocol.InitializedParams{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}

	if c.serverInfo != nil {
		c.logger.Info("server initialized", "name", c.serverInfo.Name, "version", c.serverInfo.Version)
	}
	return nil
}

// Shutdown performs the orderly LSP teardown: the shutdown request, the exit
// notification, then connection close. Any caller still blocked in a request
// is woken with ErrConnClosed. Safe to call on a never-connected client.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	closeTransport := c.closeTransport
	wasConnected := c.connected
	c.connected = false
	c.shutdown = true
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if c.settingsHolder != nil {
		c.settingsHolder.close()
	}

	var shutdownErr error
	if wasConnected {
		if err := c.call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
			shutdownErr = err
			c.logger.Warn("shutdown request failed", "error", err)
		}
		if err := c.Notify(ctx, protocol.MethodExit, nil); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	conn.Close()
	if closeTransport != nil {
		if err := closeTransport(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}

// Close tears the connection down immediately, skipping the shutdown/exit
// exchange. Blocked callers are woken with ErrConnClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	closeTransport := c.closeTransport
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if c.settingsHolder != nil {
		c.settingsHolder.close()
	}
	conn.Close()
	if closeTransport != nil {
		return closeTransport()
	}
	return nil
}
