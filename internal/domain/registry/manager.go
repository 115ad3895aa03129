package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"go.uber.org/zap"
)

// ErrRegistryFetch marks a failed monitor list refresh.
var ErrRegistryFetch = errors.New("registry fetch failed")

// RegistryFetchError carries the transport cause of a failed refresh.
type RegistryFetchError struct {
	Cause error
}

func (e *RegistryFetchError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRegistryFetch, e.Cause)
}

func (e *RegistryFetchError) Unwrap() error { return e.Cause }

func (e *RegistryFetchError) Is(target error) bool { return target == ErrRegistryFetch }

// Lister fetches the monitor list from the backend
type Lister interface {
	ListMonitors(ctx context.Context) (types.MonitorList, error)
}

// Status describes the last refresh
type Status struct {
	Monitors  int       `json:"monitors"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Manager holds the latest monitor list snapshot
type Manager struct {
	lister  Lister
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.RWMutex
	monitors  types.MonitorList // Protected by mu
	fetchedAt time.Time         // Protected by mu
	lastErr   error             // Protected by mu
	issued    uint64            // Protected by mu
	applied   uint64            // Protected by mu
	stopped   bool              // Protected by mu

	subMu   sync.Mutex
	subs    map[uint64]func(types.MonitorList)
	nextSub uint64
}

// NewManager creates a registry manager
func NewManager(lister Lister, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		lister:   lister,
		log:      log,
		monitors: types.MonitorList{},
		subs:     make(map[uint64]func(types.MonitorList)),
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Refresh fetches the monitor list. On failure the previous list is kept
// and returned alongside a *RegistryFetchError.
func (m *Manager) Refresh(ctx context.Context) (types.MonitorList, error) {
	m.mu.Lock()
	m.issued++
	seq := m.issued
	m.mu.Unlock()

	list, err := m.lister.ListMonitors(ctx)
	m.metrics.RecordRegistryRefresh(err, len(list))

	m.mu.Lock()
	if m.stopped {
		snapshot := m.monitors.Clone()
		m.mu.Unlock()
		if err != nil {
			return snapshot, &RegistryFetchError{Cause: err}
		}
		return snapshot, nil
	}

	if err != nil {
		m.lastErr = err
		snapshot := m.monitors.Clone()
		m.mu.Unlock()

		m.log.Warn("Monitor list refresh failed, keeping last known list",
			zap.Int("monitors", len(snapshot)),
			zap.Error(err))
		return snapshot, &RegistryFetchError{Cause: err}
	}

	// A slower, older request must not overwrite a newer result.
	if seq < m.applied {
		snapshot := m.monitors.Clone()
		m.mu.Unlock()
		return snapshot, nil
	}

	if list == nil {
		list = types.MonitorList{}
	}
	changed := !m.monitors.Equal(list)
	m.monitors = list
	m.applied = seq
	m.fetchedAt = time.Now()
	m.lastErr = nil
	snapshot := list.Clone()
	m.mu.Unlock()

	if changed {
		m.log.Debug("Monitor list changed", zap.Int("monitors", len(snapshot)))
		m.notify(snapshot)
	}
	return snapshot, nil
}

// Snapshot returns a copy of the latest known list
func (m *Manager) Snapshot() types.MonitorList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitors.Clone()
}

// Status returns the outcome of the last refresh
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{Monitors: len(m.monitors), FetchedAt: m.fetchedAt}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// Start refreshes immediately and then every interval until stop is
// called. An interval <= 0 refreshes once. stop cancels the loop, waits
// for it and freezes the snapshot.
func (m *Manager) Start(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = m.Refresh(ctx)
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = m.Refresh(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			m.mu.Lock()
			m.stopped = true
			m.mu.Unlock()
			m.log.Debug("Monitor registry refresh stopped")
		})
	}
}

// Subscribe registers fn for list changes. fn runs on the refreshing
// goroutine and must not block.
func (m *Manager) Subscribe(fn func(types.MonitorList)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(list types.MonitorList) {
	m.subMu.Lock()
	fns := make([]func(types.MonitorList), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(list.Clone())
	}
}
