package acquire

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is a message-oriented connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a stream connection
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials backend frame streams with gorilla/websocket
type WebsocketDialer struct {
	dialer   *websocket.Dialer
	maxFrame int64
}

// NewWebsocketDialer creates a dialer. insecureTLS accepts self-signed
// backend certificates; maxFrame bounds a single message.
func NewWebsocketDialer(insecureTLS bool, handshakeTimeout time.Duration, maxFrame int64) *WebsocketDialer {
	d := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   64 << 10,
		WriteBufferSize:  1 << 10,
	}
	if insecureTLS {
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &WebsocketDialer{dialer: d, maxFrame: maxFrame}
}

// Dial implements Dialer
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	if d.maxFrame > 0 {
		conn.SetReadLimit(d.maxFrame)
	}
	return conn, nil
}

// StreamConfig configures push-based acquisition
type StreamConfig struct {
	// BaseURL is the ws:// or wss:// backend origin
	BaseURL     string
	PrimaryOnly bool
	// ReconnectDelay > 0 redials a closed screen while the acquisition lives
	ReconnectDelay time.Duration
}

// Stream acquires frames over one websocket per screen
type Stream struct {
	cfg     StreamConfig
	dialer  Dialer
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// NewStream creates the streaming strategy
func NewStream(cfg StreamConfig, dialer Dialer, log *zap.Logger) *Stream {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{cfg: cfg, dialer: dialer, log: log}
}

// WithMetrics adds metrics tracking to the strategy
func (s *Stream) WithMetrics(metrics *monitoring.Metrics) *Stream {
	s.metrics = metrics
	return s
}

// Mode implements Strategy
func (s *Stream) Mode() string { return ModeStream }

// StreamURL builds {base}/ws/{address}/{screen}.
func StreamURL(base, address string, screen int) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(address) + "/" + strconv.Itoa(screen)
}

// Screens implements Strategy
func (s *Stream) Screens(monitor types.MonitorDescriptor) []int {
	return Screens(monitor, s.cfg.PrimaryOnly)
}

// Acquire implements Strategy
func (s *Stream) Acquire(ctx context.Context, monitor types.MonitorDescriptor, sink Sink) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: no stream base url", ErrConnection)
	}

	a := newAcquisition(ctx)
	log := s.log.With(
		zap.String("acquisition", a.id.String()),
		zap.String("address", monitor.Address))

	screens := s.Screens(monitor)
	for _, screen := range screens {
		target := StreamURL(s.cfg.BaseURL, monitor.Address, screen)
		a.goScreen(screen, sink, func(ctx context.Context, screen int) {
			s.runScreen(ctx, a, log.With(zap.Int("screen", screen)), target, screen, sink)
		})
	}

	log.Info("Stream acquisition started", zap.Int("screens", len(screens)))
	return func() {
		a.release()
		log.Info("Stream acquisition released")
	}, nil
}

// runScreen owns one screen: a reader that fills the mailbox and a render
// loop that drains it.
func (s *Stream) runScreen(ctx context.Context, a *acquisition, log *zap.Logger, target string, screen int, sink Sink) {
	box := newMailbox(s.metrics.RecordFrameDropped)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		box.deliver(ctx.Done(), func(frame []byte) {
			sink.Frame(screen, frame)
		})
	}()

	s.readLoop(ctx, a, log, target, screen, box, sink)
	box.close()
	<-rendered
}

func (s *Stream) readLoop(ctx context.Context, a *acquisition, log *zap.Logger, target string, screen int, box *mailbox, sink Sink) {
	for {
		s.setState(sink, screen, types.ConnConnecting, nil)

		conn, err := s.dialer.Dial(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("Stream dial failed", zap.Error(err))
			s.setState(sink, screen, types.ConnErrored, fmt.Errorf("%w: dial %s: %v", ErrConnection, target, err))
		} else {
			if !a.track(screen, conn) {
				_ = conn.Close()
				return
			}
			s.setState(sink, screen, types.ConnOpen, nil)
			log.Debug("Stream open")

			err = s.read(conn, box)
			if a.untrack(screen, conn) {
				_ = conn.Close()
			}
			if ctx.Err() != nil {
				return
			}

			if isNormalClose(err) {
				log.Info("Stream closed by backend")
				s.setState(sink, screen, types.ConnClosed, nil)
			} else {
				log.Warn("Stream failed", zap.Error(err))
				s.setState(sink, screen, types.ConnErrored, fmt.Errorf("%w: %v", ErrConnection, err))
			}
		}

		if s.cfg.ReconnectDelay <= 0 {
			return
		}
		timer := time.NewTimer(s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// read forwards binary messages until the connection ends.
func (s *Stream) read(conn Conn, box *mailbox) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		s.metrics.RecordFrameReceived(len(data))
		box.put(data)
	}
}

func (s *Stream) setState(sink Sink, screen int, state types.ConnState, err error) {
	s.metrics.RecordConnState(ModeStream, string(state))
	sink.State(screen, state, err)
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
