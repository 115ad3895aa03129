package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/view"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/id"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/GriffinCanCode/monview/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	replyBuffer   = 16
	selectTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The viewer API carries no credentials
	},
}

// Selector is the part of the session manager the hub drives
type Selector interface {
	Select(ctx context.Context, address string) (types.Selection, error)
	Clear()
}

// Config tunes view pushes
type Config struct {
	// MinInterval is the shortest gap between two view pushes to one viewer
	MinInterval time.Duration
}

// DefaultConfig caps pushes at 20 per second per viewer
func DefaultConfig() Config {
	return Config{MinInterval: 50 * time.Millisecond}
}

// Handler pushes the composed view to browser viewers whenever it changes
// and accepts selection commands from them.
type Handler struct {
	selector Selector
	compose  func() view.View
	cfg      Config
	log      *zap.Logger
	metrics  *monitoring.Metrics

	mu      sync.Mutex
	viewers map[id.ViewerID]*viewer // Protected by mu
	closed  bool                    // Protected by mu
}

type viewer struct {
	id      id.ViewerID
	conn    *websocket.Conn
	wake    chan struct{}
	replies chan []byte
	done    chan struct{}
	once    sync.Once
}

func (v *viewer) stop() {
	v.once.Do(func() { close(v.done) })
}

// NewHandler creates a WebSocket handler
func NewHandler(selector Selector, compose func() view.View, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Handler{
		selector: selector,
		compose:  compose,
		cfg:      cfg,
		log:      log,
		viewers:  make(map[id.ViewerID]*viewer),
	}
}

// WithMetrics adds metrics tracking to the handler
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// Notify schedules a view push to every viewer. It never blocks; pushes
// pending for the same viewer coalesce into one.
func (h *Handler) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range h.viewers {
		select {
		case v.wake <- struct{}{}:
		default:
		}
	}
}

// Viewers returns the number of connected viewers
func (h *Handler) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Close disconnects every viewer
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	viewers := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	for _, v := range viewers {
		v.stop()
	}
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	v := &viewer{
		id:      id.NewViewerID(),
		conn:    conn,
		wake:    make(chan struct{}, 1),
		replies: make(chan []byte, replyBuffer),
		done:    make(chan struct{}),
	}
	// The first push is the current view.
	v.wake <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.viewers[v.id] = v
	h.mu.Unlock()

	h.metrics.IncWSViewers()
	h.log.Debug("Viewer connected", zap.String("viewer", v.id.String()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(v)
	}()

	h.readLoop(c.Request.Context(), v)

	v.stop()
	wg.Wait()
	conn.Close()

	h.mu.Lock()
	delete(h.viewers, v.id)
	h.mu.Unlock()

	h.metrics.DecWSViewers()
	h.log.Debug("Viewer disconnected", zap.String("viewer", v.id.String()))
}

func (h *Handler) readLoop(ctx context.Context, v *viewer) {
	v.conn.SetReadLimit(utils.MaxMessageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("WebSocket read error", zap.String("viewer", v.id.String()), zap.Error(err))
			}
			return
		}
		_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.reply(v, errorMessage("malformed message"))
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "select":
			if err := utils.ValidateAddress(msg.Address); err != nil {
				h.reply(v, errorMessage(err.Error()))
				continue
			}
			selectCtx, cancel := context.WithTimeout(ctx, selectTimeout)
			_, err := h.selector.Select(selectCtx, msg.Address)
			cancel()
			if err != nil {
				h.reply(v, errorMessage(err.Error()))
			}
		case "clear":
			h.selector.Clear()
		case "ping":
			h.reply(v, outbound{Type: "pong"})
		default:
			h.reply(v, errorMessage("unknown message type"))
		}

		select {
		case <-v.done:
			return
		default:
		}
	}
}

func (h *Handler) writeLoop(v *viewer) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var lastPush time.Time
	for {
		select {
		case <-v.done:
			_ = v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			v.conn.Close()
			return

		case data := <-v.replies:
			if !h.write(v, websocket.TextMessage, data) {
				return
			}

		case <-v.wake:
			if wait := h.cfg.MinInterval - time.Since(lastPush); wait > 0 {
				select {
				case <-time.After(wait):
				case <-v.done:
					continue
				}
			}
			data, err := sonic.Marshal(outbound{Type: "view", View: viewPtr(h.compose())})
			if err != nil {
				h.log.Error("Failed to encode view", zap.Error(err))
				continue
			}
			if !h.write(v, websocket.TextMessage, data) {
				return
			}
			lastPush = time.Now()
			h.metrics.RecordWSMessage("out", "view")

		case <-ping.C:
			if !h.write(v, websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// write reports false once the connection is unusable.
func (h *Handler) write(v *viewer, messageType int, data []byte) bool {
	_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteMessage(messageType, data); err != nil {
		h.log.Debug("WebSocket write failed", zap.String("viewer", v.id.String()), zap.Error(err))
		v.stop()
		// Unblock the reader.
		v.conn.Close()
		return false
	}
	return true
}

func (h *Handler) reply(v *viewer, msg outbound) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case v.replies <- data:
		h.metrics.RecordWSMessage("out", msg.Type)
	default:
		h.log.Debug("Dropping reply to slow viewer", zap.String("viewer", v.id.String()))
	}
}

type outbound struct {
	Type  string     `json:"type"`
	View  *view.View `json:"view,omitempty"`
	Error string     `json:"error,omitempty"`
}

func errorMessage(msg string) outbound {
	return outbound{Type: "error", Error: msg}
}

func viewPtr(v view.View) *view.View { return &v }
