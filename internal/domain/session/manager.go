package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/acquire"
	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/id"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"go.uber.org/zap"
)

var (
	// ErrUnknownMonitor is returned when an address is not in the current list.
	ErrUnknownMonitor = errors.New("unknown monitor")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session manager closed")
)

// Registry provides the current monitor list
type Registry interface {
	Snapshot() types.MonitorList
}

// Manager owns the selection and the live session bound to it. All
// selection transitions are serialized.
type Manager struct {
	registry Registry
	strategy acquire.Strategy
	renderer *render.Renderer
	log      *zap.Logger
	metrics  *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	selection types.Selection // Protected by mu
	live      *liveSession    // Protected by mu
	release   acquire.Release // Protected by mu
	closed    bool            // Protected by mu

	subMu   sync.Mutex
	subs    map[uint64]func()
	nextSub uint64
}

// NewManager creates a session manager
func NewManager(registry Registry, strategy acquire.Strategy, renderer *render.Renderer, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: registry,
		strategy: strategy,
		renderer: renderer,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[uint64]func()),
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Mode returns the acquisition mode in use
func (m *Manager) Mode() string {
	return m.strategy.Mode()
}

// Renderer returns the renderer painting the live session
func (m *Manager) Renderer() *render.Renderer {
	return m.renderer
}

// Select makes address the current selection. The address is resolved
// against the current monitor list by equality. Selecting the current
// address again does nothing unless the acquisition of every screen has
// stopped on its own, in which case the session is restarted. Any previous live session is
// released before the new one is acquired.
//
// ctx bounds only the call; the live session lasts until the selection
// changes or the manager is closed.
func (m *Manager) Select(ctx context.Context, address string) (types.Selection, error) {
	if err := ctx.Err(); err != nil {
		return types.Selection{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return types.Selection{}, ErrClosed
	}

	monitor, ok := m.registry.Snapshot().Find(address)
	if !ok {
		current := m.selection
		m.mu.Unlock()
		return current, fmt.Errorf("%w: %q", ErrUnknownMonitor, address)
	}

	if m.selection.Address() == address && !m.live.terminated() {
		current := m.selection
		m.mu.Unlock()
		return current, nil
	}

	m.teardownLocked()

	live := newLiveSession(m, monitor, m.strategy.Screens(monitor))
	release, err := m.strategy.Acquire(m.ctx, monitor, live)
	if err != nil {
		live.active.Store(false)
		m.mu.Unlock()

		m.log.Warn("Failed to start live session",
			zap.String("address", address),
			zap.Error(err))
		m.notify()
		return types.Selection{}, fmt.Errorf("acquire %s: %w", address, err)
	}

	m.selection = types.SelectionOf(monitor)
	m.live = live
	m.release = release
	selection := m.selection
	m.mu.Unlock()

	m.metrics.RecordSelection("select")
	m.metrics.SetActiveScreens(len(live.indexes))
	m.log.Info("Monitor selected",
		zap.String("session", live.id.String()),
		zap.String("address", monitor.Address),
		zap.String("user", monitor.User),
		zap.Int("screens", len(live.indexes)),
		zap.String("mode", m.strategy.Mode()))
	m.notify()
	return selection, nil
}

// Clear selects nothing. The live session is fully torn down before Clear
// returns, and no frame is painted afterwards.
func (m *Manager) Clear() {
	m.mu.Lock()
	if m.selection.IsNone() {
		m.mu.Unlock()
		return
	}
	address := m.selection.Address()
	m.teardownLocked()
	m.mu.Unlock()

	m.metrics.RecordSelection("clear")
	m.log.Info("Selection cleared", zap.String("address", address))
	m.notify()
}

// Close tears down the live session and rejects further selections
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.teardownLocked()
	m.cancel()
	m.renderer.Close()
	m.mu.Unlock()

	m.log.Info("Session manager closed")
	m.notify()
}

// teardownLocked releases the live session. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	if m.live != nil {
		// Frames still in flight are ignored from here on.
		m.live.active.Store(false)
	}
	if m.release != nil {
		m.release()
		m.release = nil
	}
	m.renderer.Reset()
	if m.live != nil {
		m.log.Debug("Live session released", zap.String("session", m.live.id.String()))
	}
	m.live = nil
	m.selection = types.Selection{}
	m.metrics.SetActiveScreens(0)
}

// Selection returns the current selection
func (m *Manager) Selection() types.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection
}

// Info summarizes the current live session
func (m *Manager) Info() types.SessionInfo {
	m.mu.Lock()
	selection := m.selection
	live := m.live
	m.mu.Unlock()

	info := types.SessionInfo{
		Mode:      m.strategy.Mode(),
		Selection: selection,
		Screens:   []types.ScreenStatus{},
	}
	if live == nil {
		return info
	}

	started := live.startedAt
	info.ID = live.id.String()
	info.StartedAt = &started
	info.Screens = live.statuses()
	for i := range info.Screens {
		screen := &info.Screens[i]
		if meta, ok := m.renderer.Meta(screen.Index); ok {
			screen.Width = meta.Width
			screen.Height = meta.Height
			screen.Version = meta.Version
			screen.UpdatedAt = meta.UpdatedAt
		}
		if stats, ok := m.renderer.Stats(screen.Index); ok {
			screen.FPS = stats.FPS
			screen.Jitter = stats.Jitter
		}
	}
	return info
}

// Subscribe registers fn to be called after any change to the selection,
// a screen's connection state or its surface. fn runs on the goroutine
// that made the change and must not block.
func (m *Manager) Subscribe(fn func()) (unsubscribe func()) {
	m.subMu.Lock()
	key := m.nextSub
	m.nextSub++
	m.subs[key] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, key)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	m.subMu.Lock()
	fns := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// liveSession is the acquire.Sink for one selection. It never takes the
// manager's lock, since teardown waits on its callers.
type liveSession struct {
	id        id.SessionID
	startedAt time.Time
	indexes   []int
	manager   *Manager
	log       *zap.Logger
	active    atomic.Bool

	mu      sync.Mutex
	screens map[int]*types.ScreenStatus // Protected by mu
	ended   map[int]bool                // Protected by mu
}

func newLiveSession(m *Manager, monitor types.MonitorDescriptor, indexes []int) *liveSession {
	l := &liveSession{
		id:        id.NewSessionID(),
		startedAt: time.Now(),
		indexes:   indexes,
		manager:   m,
		screens:   make(map[int]*types.ScreenStatus),
		ended:     make(map[int]bool),
	}
	l.log = m.log.With(zap.String("session", l.id.String()), zap.String("address", monitor.Address))
	l.active.Store(true)
	return l
}

// Frame implements acquire.Sink
func (l *liveSession) Frame(screen int, data []byte) {
	if !l.active.Load() {
		return
	}
	if err := l.manager.renderer.Render(screen, data); err != nil {
		if !errors.Is(err, render.ErrClosed) {
			l.log.Debug("Frame dropped", zap.Int("screen", screen), zap.Error(err))
		}
		return
	}
	l.manager.notify()
}

// State implements acquire.Sink
func (l *liveSession) State(screen int, state types.ConnState, err error) {
	if !l.active.Load() {
		return
	}

	l.mu.Lock()
	status, ok := l.screens[screen]
	if !ok {
		status = &types.ScreenStatus{Index: screen}
		l.screens[screen] = status
	}
	status.State = state
	if err != nil {
		status.LastError = err.Error()
	} else if state == types.ConnOpen {
		status.LastError = ""
	}
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("Screen connection state", zap.Int("screen", screen), zap.String("state", string(state)), zap.Error(err))
	} else {
		l.log.Debug("Screen connection state", zap.Int("screen", screen), zap.String("state", string(state)))
	}
	l.manager.notify()
}

// Ended implements acquire.Sink
func (l *liveSession) Ended(screen int) {
	if !l.active.Load() {
		return
	}
	l.mu.Lock()
	l.ended[screen] = true
	l.mu.Unlock()

	l.log.Debug("Screen acquisition ended", zap.Int("screen", screen))
	l.manager.notify()
}

// terminated reports whether the acquisition of every screen has stopped.
func (l *liveSession) terminated() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range l.indexes {
		if !l.ended[i] {
			return false
		}
	}
	return true
}

// statuses lists every acquired screen, absent until first reported.
func (l *liveSession) statuses() []types.ScreenStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.ScreenStatus, 0, len(l.indexes))
	for _, i := range l.indexes {
		if s, ok := l.screens[i]; ok {
			out = append(out, *s)
			continue
		}
		out = append(out, types.ScreenStatus{Index: i, State: types.ConnAbsent})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
