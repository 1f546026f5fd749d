package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/metric"
	"github.com/c360/eventscope/pkg/paramstore"
	"github.com/c360/eventscope/pkg/window"
	"github.com/c360/eventscope/session"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Config holds configuration for the WebSocket output.
type Config struct {
	Port         int           `json:"port" yaml:"port"`
	Path         string        `json:"path" yaml:"path"`
	PingInterval time.Duration `json:"ping_interval" yaml:"ping_interval"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// ControlRate limits inbound messages per client per second; zero disables
	// the limit. ControlBurst is the bucket size.
	ControlRate  float64 `json:"control_rate" yaml:"control_rate"`
	ControlBurst int     `json:"control_burst" yaml:"control_burst"`
}

// DefaultConfig returns sensible defaults for the renderer feed.
func DefaultConfig() Config {
	return Config{
		Port:         8081,
		Path:         "/ws",
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
		ControlRate:  50,
		ControlBurst: 20,
	}
}

// Validate checks the configuration. Port 0 picks a free port.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Validate",
			fmt.Sprintf("invalid port %d (out of range 0-65535)", c.Port))
	}
	if c.Path == "" || !strings.HasPrefix(c.Path, "/") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Validate",
			"WebSocket path must start with /")
	}
	if c.PingInterval <= 0 || c.WriteTimeout <= 0 || c.ReadTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Validate",
			"ping interval and timeouts must be positive")
	}
	if c.ControlRate < 0 || c.ControlBurst < 0 || (c.ControlRate > 0 && c.ControlBurst == 0) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Validate",
			"control rate and burst must not be negative, and a rate needs a burst")
	}
	return nil
}

func (c Config) newLimiter() *rate.Limiter {
	if c.ControlRate == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.ControlRate), c.ControlBurst)
}

// SourceSelector switches the active source.
type SourceSelector func(name string) error

// Output is a WebSocket server that broadcasts window snapshots to connected
// clients and applies their control messages to a parameter store.
type Output struct {
	cfg          Config
	store        *paramstore.Store
	selectSource SourceSelector
	logger       *slog.Logger
	registry     *metric.MetricsRegistry
	metrics      *Metrics

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]*clientInfo
	clientsMu sync.RWMutex

	// Lifecycle management
	lifecycleMu  sync.Mutex
	running      bool
	server       *http.Server
	listener     net.Listener
	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	paramChanges chan string

	messageIDCounter atomic.Uint64
}

// clientInfo holds information about a connected client.
type clientInfo struct {
	conn        *websocket.Conn
	connectedAt time.Time
	lastPing    atomic.Value // stores time.Time
	closed      atomic.Bool
	closeOnce   sync.Once
	writeMutex  sync.Mutex
	limiter     *rate.Limiter
}

// Option configures an Output.
type Option func(*Output)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Output) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers the output's metrics with registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *Output) { o.registry = registry }
}

// WithSourceSelector enables "select_source" messages.
func WithSourceSelector(fn SourceSelector) Option {
	return func(o *Output) { o.selectSource = fn }
}

// New creates an Output serving store's playback keys.
func New(cfg Config, store *paramstore.Store, opts ...Option) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Output", "New", "parameter store is required")
	}

	o := &Output{
		cfg:   cfg,
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:      make(map[*websocket.Conn]*clientInfo),
		shutdown:     make(chan struct{}),
		paramChanges: make(chan string, 64),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "websocket_output")

	m, err := newMetrics(o.registry)
	if err != nil {
		return nil, errors.Wrap(err, "Output", "New", "metrics registration")
	}
	o.metrics = m

	store.Watch(o.paramChanges)
	return o, nil
}

func (o *Output) generateMessageID() string {
	counter := o.messageIDCounter.Add(1)
	return fmt.Sprintf("msg-%d-%d", time.Now().UnixMilli(), counter)
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (o *Output) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(o.cfg.Path, o.handleWebSocket)
	return mux
}

// ClientCount returns the number of connected clients.
func (o *Output) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

// Address returns the listen address once started.
func (o *Output) Address() string {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()
	if o.listener == nil {
		return ""
	}
	return o.listener.Addr().String()
}

// Start listens on the configured port and serves until Stop.
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Output", "Start", "start server")
	}
	select {
	case <-o.shutdown:
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Output", "Start", "start server")
	default:
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Output", "Start", "context check")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", o.cfg.Port))
	if err != nil {
		return errors.WrapFatal(err, "Output", "Start", fmt.Sprintf("listen on port %d", o.cfg.Port))
	}
	o.listener = ln
	o.server = &http.Server{
		Handler:           o.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	o.running = true

	o.wg.Add(3)
	go o.runServer(o.server, ln)
	go o.maintainClients(ctx)
	go o.watchParams(ctx)

	o.logger.Info("WebSocket output started", "address", ln.Addr().String(), "path", o.cfg.Path)
	return nil
}

func (o *Output) runServer(server *http.Server, ln net.Listener) {
	defer o.wg.Done()
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		o.logger.Error("HTTP server failed", "error", err)
		o.metrics.recordError("server")
	}
}

// Stop shuts the server down, closes all clients and waits up to timeout for
// background goroutines. An Output cannot be restarted.
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	o.shutdownOnce.Do(func() { close(o.shutdown) })
	server := o.server
	o.running = false
	o.server = nil

	var shutdownErr error
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("HTTP server shutdown error", "error", err)
			shutdownErr = errors.WrapTransient(err, "Output", "Stop", "shutdown server")
		}
	}

	o.closeAllClients()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.logger.Warn("WebSocket goroutines did not exit within timeout")
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Output", "Stop", "wait for goroutines")
	}
	return shutdownErr
}

func (o *Output) closeAllClients() {
	o.clientsMu.RLock()
	infos := make([]*clientInfo, 0, len(o.clients))
	for _, info := range o.clients {
		infos = append(infos, info)
	}
	o.clientsMu.RUnlock()

	for _, info := range infos {
		o.removeClient(info, "shutdown")
	}
}

// Publish broadcasts a window snapshot. It implements session.Sink.
func (o *Output) Publish(_ context.Context, snap session.Snapshot) error {
	if o.ClientCount() == 0 {
		return nil
	}
	data, err := o.envelope(TypeWindow, snap)
	if err != nil {
		return errors.Wrap(err, "Output", "Publish", "encode snapshot")
	}
	o.broadcast(TypeWindow, data)
	return nil
}

var _ session.Sink = (*Output)(nil)

func (o *Output) envelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(MessageEnvelope{
		Type:      msgType,
		ID:        o.generateMessageID(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	})
}

// handleWebSocket upgrades a connection, registers the client and sends it
// the current playback parameters.
func (o *Output) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-o.shutdown:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.logger.Debug("Connection upgrade failed", "error", err, "remote", r.RemoteAddr)
		o.metrics.recordError("connection_upgrade")
		return
	}

	info := &clientInfo{conn: conn, connectedAt: time.Now(), limiter: o.cfg.newLimiter()}
	info.lastPing.Store(time.Now())

	o.clientsMu.Lock()
	o.clients[conn] = info
	clientCount := len(o.clients)
	o.clientsMu.Unlock()

	if o.metrics != nil {
		o.metrics.connectionTotal.Inc()
		o.metrics.clientsConnected.Set(float64(clientCount))
	}
	o.logger.Debug("Client connected", "remote", r.RemoteAddr, "clients", clientCount)

	if data, err := o.envelope(TypeParams, playbackParams(o.store)); err == nil {
		o.send(info, TypeParams, data)
	}

	o.wg.Add(1)
	go o.handleClient(info)
}

// handleClient reads inbound messages until the connection fails.
func (o *Output) handleClient(info *clientInfo) {
	defer o.wg.Done()
	defer o.removeClient(info, "normal")

	conn := info.conn
	conn.SetPongHandler(func(string) error {
		info.lastPing.Store(time.Now())
		return conn.SetReadDeadline(time.Now().Add(o.cfg.ReadTimeout))
	})

	for {
		select {
		case <-o.shutdown:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(o.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env MessageEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			o.metrics.recordControl("malformed", "rejected")
			o.replyError(info, "", fmt.Sprintf("malformed envelope: %v", err))
			continue
		}
		o.handleMessage(info, env)
	}
}

func (o *Output) handleMessage(info *clientInfo, env MessageEnvelope) {
	if env.Type != TypeControl && env.Type != TypeSelectSource {
		return
	}
	if !info.limiter.Allow() {
		o.metrics.recordControl(env.Type, "rate_limited")
		o.replyError(info, env.ID, "rate limit exceeded")
		return
	}

	var err error
	switch env.Type {
	case TypeControl:
		var p ControlPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = applyControl(o.store, p)
		}
		if err == nil {
			o.logger.Debug("Control applied", "key", p.Key, "value", string(p.Value))
		}
	case TypeSelectSource:
		var p SelectSourcePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			if o.selectSource == nil {
				err = errors.WrapInvalid(errors.ErrInvalidData, "Output", "handleMessage",
					"source selection is not enabled")
			} else {
				err = o.selectSource(p.Source)
			}
		}
	default:
		return
	}

	if err != nil {
		o.metrics.recordControl(env.Type, "rejected")
		o.logger.Debug("Inbound message rejected", "type", env.Type, "id", env.ID, "error", err)
		o.replyError(info, env.ID, err.Error())
		return
	}
	o.metrics.recordControl(env.Type, "applied")
}

func (o *Output) replyError(info *clientInfo, ref, message string) {
	data, err := o.envelope(TypeError, ErrorPayload{Ref: ref, Message: message})
	if err != nil {
		return
	}
	o.send(info, TypeError, data)
}

// removeClient closes and forgets a client exactly once.
func (o *Output) removeClient(info *clientInfo, reason string) {
	info.closeOnce.Do(func() {
		info.closed.Store(true)

		o.clientsMu.Lock()
		delete(o.clients, info.conn)
		clientCount := len(o.clients)
		o.clientsMu.Unlock()

		if o.metrics != nil {
			o.metrics.disconnectionTotal.WithLabelValues(reason).Inc()
			o.metrics.clientsConnected.Set(float64(clientCount))
		}
		_ = info.conn.Close()
	})
}

// broadcast sends data to every connected client.
func (o *Output) broadcast(msgType string, data []byte) {
	start := time.Now()
	for _, info := range o.snapshotClients() {
		o.send(info, msgType, data)
	}
	if o.metrics != nil {
		o.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
}

func (o *Output) snapshotClients() []*clientInfo {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	out := make([]*clientInfo, 0, len(o.clients))
	for _, info := range o.clients {
		if !info.closed.Load() {
			out = append(out, info)
		}
	}
	return out
}

// send writes one text message; a failed client is removed.
func (o *Output) send(info *clientInfo, msgType string, data []byte) {
	if err := o.write(info, websocket.TextMessage, data); err != nil {
		o.metrics.recordError("send_failed")
		o.removeClient(info, "write_error")
		return
	}
	o.metrics.recordSent(msgType, len(data))
}

func (o *Output) write(info *clientInfo, messageType int, data []byte) error {
	info.writeMutex.Lock()
	defer info.writeMutex.Unlock()
	if info.closed.Load() {
		return net.ErrClosed
	}
	_ = info.conn.SetWriteDeadline(time.Now().Add(o.cfg.WriteTimeout))
	return info.conn.WriteMessage(messageType, data)
}

// maintainClients pings every client each PingInterval.
func (o *Output) maintainClients(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.shutdown:
			return
		case <-ticker.C:
			for _, info := range o.snapshotClients() {
				if err := o.write(info, websocket.PingMessage, nil); err != nil {
					o.metrics.recordError("ping_failed")
					o.removeClient(info, "ping_failed")
				}
			}
		}
	}
}

// watchParams broadcasts the playback parameters whenever one changes.
// Bursts of changes are coalesced into one message. Cursor moves are not
// echoed; every window message already carries them.
func (o *Output) watchParams(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.shutdown:
			return
		case key := <-o.paramChanges:
			dirty := echoed(key)
		drain:
			for {
				select {
				case key = <-o.paramChanges:
					dirty = dirty || echoed(key)
				default:
					break drain
				}
			}
			if !dirty || o.ClientCount() == 0 {
				continue
			}
			data, err := o.envelope(TypeParams, playbackParams(o.store))
			if err != nil {
				o.metrics.recordError("encode")
				continue
			}
			o.broadcast(TypeParams, data)
		}
	}
}

func echoed(key string) bool {
	if key == window.KeyIndexCurrent || key == window.KeyTimeCurrent {
		return false
	}
	return strings.HasPrefix(key, "playback.")
}
