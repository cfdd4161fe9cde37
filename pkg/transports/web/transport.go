package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/transports"
)

//go:embed static
var staticFiles embed.FS

// Config sets the listen address, websocket path and origin policy.
type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Transport serves the interview page and bridges it over a websocket.
// Every connected client sees the same session.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	signals  chan transports.Signal
	log      *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
	// latest update per type, replayed to clients that join mid-session
	latest   map[transports.UpdateType][]byte
	addr     string
	draining atomic.Bool
	stopOnce sync.Once
}

// New returns a web transport serving the embedded UI. Start listens.
func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		signals: make(chan transports.Signal, 64),
		log:     cfg.Logger,
		clients: make(map[string]*client),
		latest:  make(map[transports.UpdateType][]byte),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "web" }

func (t *Transport) Signals() <-chan transports.Signal { return t.signals }

func (t *Transport) ReadyFields() map[string]any {
	t.mu.Lock()
	addr := t.addr
	t.mu.Unlock()
	if addr == "" {
		addr = t.cfg.ServerAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	if strings.HasPrefix(addr, "[::]") {
		addr = "localhost" + strings.TrimPrefix(addr, "[::]")
	}
	return map[string]any{
		"page_url": "http://" + addr + "/",
		"ws_url":   "ws://" + addr + t.cfg.WebsocketPath,
	}
}

// Handler returns the routes without starting a listener.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", t.staticHandler())
	return mux
}

func (t *Transport) staticHandler() http.Handler {
	if t.cfg.StaticDir != "" {
		return http.FileServer(http.Dir(t.cfg.StaticDir))
	}
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embedded tree is fixed at build time.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", t.cfg.ServerAddr)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportListen)
	}
	t.mu.Lock()
	t.addr = ln.Addr().String()
	t.mu.Unlock()
	t.server = &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("web_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.stopOnce.Do(func() {
		t.draining.Store(true)
		if t.server != nil {
			_ = t.server.Close()
		}
		t.mu.Lock()
		for id, c := range t.clients {
			_ = c.close()
			delete(t.clients, id)
		}
		close(t.signals)
		t.mu.Unlock()
	})
	return nil
}

// Send broadcasts an update to every connected client.
func (t *Transport) Send(u transports.Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	t.mu.Lock()
	if u.Type != transports.UpdateVisualizer {
		t.latest[u.Type] = b
	}
	clients := make([]*client, 0, len(t.clients))
	for _, c := range t.clients {
		clients = append(clients, c)
	}
	t.mu.Unlock()
	for _, c := range clients {
		c.enqueue(b)
	}
	return nil
}

type inbound struct {
	Type string `json:"type"`
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := t.attach(conn)
	defer t.detach(c.id)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			continue
		}
		kind := transports.SignalKind(strings.ToLower(strings.TrimSpace(in.Type)))
		switch kind {
		case transports.SignalBegin, transports.SignalAdvance:
		default:
			continue
		}
		t.emit(transports.Signal{Kind: kind, ClientID: c.id, Time: time.Now()})
	}
}

func (t *Transport) emit(s transports.Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining.Load() {
		return
	}
	if !transports.NonBlockingSend(t.signals, s) {
		t.log.Warn("web_signal_dropped", "client_id", s.ClientID, "kind", string(s.Kind))
	}
}

func (t *Transport) attach(conn *websocket.Conn) *client {
	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, 256),
	}
	go c.loop()

	t.mu.Lock()
	t.clients[c.id] = c
	for _, typ := range []transports.UpdateType{
		transports.UpdateView,
		transports.UpdateQuestion,
		transports.UpdateTimer,
		transports.UpdateResult,
	} {
		if b, ok := t.latest[typ]; ok {
			c.enqueue(b)
		}
	}
	n := len(t.clients)
	t.mu.Unlock()
	t.log.Info("web_client_connected", "client_id", c.id, "clients", n)
	return c
}

func (t *Transport) detach(id string) {
	t.mu.Lock()
	c := t.clients[id]
	delete(t.clients, id)
	t.mu.Unlock()
	if c != nil {
		_ = c.close()
		t.log.Info("web_client_disconnected", "client_id", id)
	}
}

// ClientCount returns the number of connected clients.
func (t *Transport) ClientCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

type client struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
	mu     sync.Mutex
	closed atomic.Bool
}

func (c *client) enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	select {
	case c.sendCh <- b:
	default:
	}
}

func (c *client) loop() {
	for msg := range c.sendCh {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (c *client) close() error {
	c.mu.Lock()
	if c.closed.CompareAndSwap(false, true) {
		close(c.sendCh)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

var (
	_ transports.Transport     = (*Transport)(nil)
	_ transports.ReadyReporter = (*Transport)(nil)
)
