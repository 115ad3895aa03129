package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/acquire"
	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStrategy counts Acquire calls on a real strategy.
type countingStrategy struct {
	acquire.Strategy
	acquires atomic.Int32
}

func (c *countingStrategy) Acquire(ctx context.Context, monitor types.MonitorDescriptor, sink acquire.Sink) (acquire.Release, error) {
	c.acquires.Add(1)
	return c.Strategy.Acquire(ctx, monitor, sink)
}

// imageFetcher serves one image for every screen, or fails when frame is nil.
type imageFetcher struct {
	frame []byte
	calls atomic.Int32

	mu      sync.Mutex
	screens map[int]bool
}

func (f *imageFetcher) ScreenImage(ctx context.Context, address string, screen int, token string) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	if f.screens == nil {
		f.screens = make(map[int]bool)
	}
	f.screens[screen] = true
	f.mu.Unlock()

	if f.frame == nil {
		return nil, errors.New("backend returned 500")
	}
	return f.frame, nil
}

func (f *imageFetcher) LegacyImage(ctx context.Context, address string, token string) ([]byte, error) {
	return f.ScreenImage(ctx, address, 0, token)
}

func (f *imageFetcher) requested() map[int]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]bool, len(f.screens))
	for k, v := range f.screens {
		out[k] = v
	}
	return out
}

// frameServer serves /ws/{address}/{screen} with one frame per connection.
// Unless hold is set it then closes the stream normally.
type frameServer struct {
	*httptest.Server
	dials atomic.Int32
}

func newFrameServer(t *testing.T, frame []byte, hold bool) *frameServer {
	t.Helper()
	fs := &frameServer{}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
		if !hold {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *frameServer) streamStrategy(primaryOnly bool) *countingStrategy {
	base := "ws" + strings.TrimPrefix(fs.URL, "http")
	dialer := acquire.NewWebsocketDialer(false, time.Second, 1<<20)
	return &countingStrategy{Strategy: acquire.NewStream(acquire.StreamConfig{BaseURL: base, PrimaryOnly: primaryOnly}, dialer, nil)}
}

func newLiveManager(t *testing.T, strategy acquire.Strategy, monitors ...types.MonitorDescriptor) (*Manager, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	mgr := NewManager(&staticRegistry{list: types.MonitorList(monitors)}, strategy, render.New(render.Config{}, nil), nil).
		WithMetrics(metrics)
	t.Cleanup(mgr.Close)
	return mgr, metrics
}

func screenState(mgr *Manager, screen int) types.ConnState {
	for _, s := range mgr.Info().Screens {
		if s.Index == screen {
			return s.State
		}
	}
	return ""
}

func sessionEnded(mgr *Manager) bool {
	mgr.mu.Lock()
	live := mgr.live
	mgr.mu.Unlock()
	return live != nil && live.terminated()
}

func TestPollReselectAfterFailureKeepsTimer(t *testing.T) {
	fetcher := &imageFetcher{}
	strategy := &countingStrategy{Strategy: acquire.NewPoll(acquire.PollConfig{Interval: 20 * time.Millisecond}, fetcher, nil)}
	mgr, _ := newLiveManager(t, strategy, alice)
	ctx := context.Background()

	_, err := mgr.Select(ctx, "A1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return screenState(mgr, 0) == types.ConnErrored }, time.Second, 5*time.Millisecond)
	first := mgr.Info().ID

	time.Sleep(50 * time.Millisecond)
	_, err = mgr.Select(ctx, "A1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), strategy.acquires.Load())
	assert.Equal(t, first, mgr.Info().ID)
	assert.False(t, sessionEnded(mgr))

	// The errored screen is still polled on its cadence.
	calls := fetcher.calls.Load()
	require.Eventually(t, func() bool { return fetcher.calls.Load() > calls }, time.Second, 5*time.Millisecond)
}

func TestPollPrimaryOnlyAcquiresOneScreen(t *testing.T) {
	fetcher := &imageFetcher{frame: pngFrame(t, 64, 48)}
	strategy := acquire.NewPoll(acquire.PollConfig{Interval: 20 * time.Millisecond, PrimaryOnly: true}, fetcher, nil)
	mgr, metrics := newLiveManager(t, strategy, bob)

	_, err := mgr.Select(context.Background(), "B2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Snapshot().ActiveScreens)

	require.Eventually(t, func() bool { return screenState(mgr, 0) == types.ConnOpen }, time.Second, 5*time.Millisecond)
	screens := mgr.Info().Screens
	require.Len(t, screens, 1)
	assert.Equal(t, 0, screens[0].Index)
	assert.Equal(t, map[int]bool{0: true}, fetcher.requested())
}

func TestStreamReselectWhileOpenIsNoop(t *testing.T) {
	srv := newFrameServer(t, pngFrame(t, 32, 32), true)
	strategy := srv.streamStrategy(false)
	mgr, _ := newLiveManager(t, strategy, alice)
	ctx := context.Background()

	_, err := mgr.Select(ctx, "A1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s := mgr.Info().Screens
		return len(s) == 1 && s[0].State == types.ConnOpen && s[0].Version > 0
	}, 2*time.Second, 5*time.Millisecond)
	first := mgr.Info().ID

	_, err = mgr.Select(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), strategy.acquires.Load())
	assert.Equal(t, first, mgr.Info().ID)
	assert.Equal(t, int32(1), srv.dials.Load())
}

func TestStreamReselectAfterBackendClose(t *testing.T) {
	srv := newFrameServer(t, pngFrame(t, 32, 32), false)
	strategy := srv.streamStrategy(false)
	mgr, _ := newLiveManager(t, strategy, alice)
	ctx := context.Background()

	_, err := mgr.Select(ctx, "A1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sessionEnded(mgr) }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, []types.ConnState{types.ConnClosed, types.ConnErrored}, screenState(mgr, 0))
	first := mgr.Info().ID

	_, err = mgr.Select(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), strategy.acquires.Load())
	assert.NotEqual(t, first, mgr.Info().ID)
	require.Eventually(t, func() bool { return srv.dials.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestStreamPrimaryOnlyReselectAfterBackendClose(t *testing.T) {
	srv := newFrameServer(t, pngFrame(t, 32, 32), false)
	strategy := srv.streamStrategy(true)
	mgr, metrics := newLiveManager(t, strategy, bob)
	ctx := context.Background()

	_, err := mgr.Select(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Snapshot().ActiveScreens)

	require.Eventually(t, func() bool { return sessionEnded(mgr) }, 2*time.Second, 5*time.Millisecond)
	screens := mgr.Info().Screens
	require.Len(t, screens, 1)
	assert.Equal(t, 0, screens[0].Index)
	assert.Contains(t, []types.ConnState{types.ConnClosed, types.ConnErrored}, screens[0].State)

	_, err = mgr.Select(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), strategy.acquires.Load())
	require.Eventually(t, func() bool { return srv.dials.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}
