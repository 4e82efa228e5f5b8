package custws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	custcon "github.com/polycast/relay/internal/concurrent"
	"github.com/polycast/relay/internal/configs"
	"github.com/polycast/relay/internal/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ConnectionHandler carries the per-connection protocol state. One instance is
// created per accepted connection and all of its methods are invoked from that
// connection's read loop, never concurrently.
type ConnectionHandler interface {
	HandleText(ctx context.Context, payload []byte)
	HandleBinary(ctx context.Context, payload []byte)
	HandleClose(ctx context.Context)
}

type HandlerFactory func(conn *Connection) ConnectionHandler

type WebSocketServer struct {
	options *WebSocketServerOptions
	server  *http.Server
	pool    *ants.Pool

	upgrader websocket.Upgrader
}

type WebSocketServerOptions struct {
	configs        *configs.HttpConfigs
	path           string
	handlerFactory HandlerFactory
	poolSize       int
}

type WebSocketServerOptioner func(o *WebSocketServerOptions)

func WithGlobalConfigs(c *configs.HttpConfigs) WebSocketServerOptioner {
	return func(o *WebSocketServerOptions) {
		o.configs = c
	}
}

func WithPath(path string) WebSocketServerOptioner {
	return func(o *WebSocketServerOptions) {
		o.path = path
	}
}

func WithHandlerFactory(f HandlerFactory) WebSocketServerOptioner {
	return func(o *WebSocketServerOptions) {
		o.handlerFactory = f
	}
}

func WithPoolSize(size int) WebSocketServerOptioner {
	return func(o *WebSocketServerOptions) {
		o.poolSize = size
	}
}

func NewWebSocketServer(options ...WebSocketServerOptioner) *WebSocketServer {
	opts := &WebSocketServerOptions{
		path:     "/control",
		poolSize: 100,
	}
	for _, option := range options {
		option(opts)
	}

	s := &WebSocketServer{
		options: opts,
		pool:    custcon.New(opts.poolSize),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(opts.path, s.handleUpgrade)
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.configs.Port),
		Handler: mux,
	}
	return s
}

func (s *WebSocketServer) Name() string {
	return s.options.configs.Name
}

// Handler exposes the upgrade endpoint without the listener, for tests.
func (s *WebSocketServer) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *WebSocketServer) Start() error {
	if s.options.configs.Tls.IsEnabled() {
		return s.server.ListenAndServeTLS(
			s.options.configs.Tls.Cert,
			s.options.configs.Tls.Key)
	}
	return s.server.ListenAndServe()
}

func (s *WebSocketServer) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.pool.Release()
	logger.SDebug("WebSocketServer.Stop: shutdown completed")
	return nil
}

func (s *WebSocketServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.SError("WebSocketServer.handleUpgrade: upgrade error", zap.Error(err))
		return
	}

	wrapped := &Connection{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
	}
	handler := s.options.handlerFactory(wrapped)

	if err := s.pool.Submit(func() {
		s.readLoop(wrapped, handler)
	}); err != nil {
		logger.SError("WebSocketServer.handleUpgrade: pool submit error", zap.Error(err))
		conn.Close()
	}
}

func (s *WebSocketServer) readLoop(conn *Connection, handler ConnectionHandler) {
	logger.SDebug("WebSocketServer.readLoop: connection accepted",
		zap.String("remote", conn.RemoteAddr()))
	ctx := context.Background()
	defer func() {
		handler.HandleClose(ctx)
		conn.Close()
		logger.SDebug("WebSocketServer.readLoop: connection closed",
			zap.String("remote", conn.RemoteAddr()))
	}()

	for {
		messageType, payload, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				logger.SDebug("WebSocketServer.readLoop: ReadMessage error",
					zap.String("remote", conn.RemoteAddr()),
					zap.Error(err))
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			handler.HandleText(ctx, payload)
		case websocket.BinaryMessage:
			handler.HandleBinary(ctx, payload)
		}
	}
}

// Connection wraps one accepted websocket connection with a write lock, as
// replies and server-pushed events may be written from different goroutines.
type Connection struct {
	conn       *websocket.Conn
	remoteAddr string
	mu         sync.Mutex
	closed     bool
}

func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Connection) SendJSON(msg interface{}) error {
	encoded, err := sonic.Marshal(msg)
	if err != nil {
		logger.SError("Connection.SendJSON: marshal error", zap.Error(err))
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	return c.conn.WriteMessage(websocket.TextMessage, encoded)
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
