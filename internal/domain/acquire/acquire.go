package acquire

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/monview/internal/shared/id"
	"github.com/GriffinCanCode/monview/internal/shared/types"
)

// Acquisition modes
const (
	ModeStream = "stream"
	ModePoll   = "poll"
)

// ErrConnection wraps per-screen transport failures.
var ErrConnection = errors.New("connection error")

// Sink receives frames and connection state for one acquisition. Calls for
// one screen arrive in order; calls for different screens may be concurrent.
// Ended is the last call for a screen whose acquisition stopped on its own.
// It is not called for screens stopped by Release.
type Sink interface {
	Frame(screen int, data []byte)
	State(screen int, state types.ConnState, err error)
	Ended(screen int)
}

// Release tears an acquisition down. It is idempotent, and once it returns
// the sink receives no further calls.
type Release func()

// Strategy acquires frames for a selected monitor
type Strategy interface {
	Mode() string
	// Screens lists the screen indexes Acquire opens for monitor.
	Screens(monitor types.MonitorDescriptor) []int
	Acquire(ctx context.Context, monitor types.MonitorDescriptor, sink Sink) (Release, error)
}

// Screens returns the screen indexes to acquire for a monitor.
func Screens(monitor types.MonitorDescriptor, primaryOnly bool) []int {
	n := monitor.Screens()
	if primaryOnly {
		n = 1
	}
	screens := make([]int, n)
	for i := range screens {
		screens[i] = i
	}
	return screens
}

// acquisition is the scope every timer and connection of one Acquire call
// belongs to.
type acquisition struct {
	id     id.AcquisitionID
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.Mutex
	closed bool         // Protected by mu
	conns  map[int]Conn // Protected by mu
}

func newAcquisition(parent context.Context) *acquisition {
	ctx, cancel := context.WithCancel(parent)
	return &acquisition{
		id:     id.NewAcquisitionID(),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[int]Conn),
	}
}

// goScreen runs fn for one screen inside the acquisition. If fn returns
// before release, the sink is told the screen ended.
func (a *acquisition) goScreen(screen int, sink Sink, fn func(ctx context.Context, screen int)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx, screen)
		if a.ctx.Err() == nil {
			sink.Ended(screen)
		}
	}()
}

// track registers a live connection so release can close it. It reports
// false once the acquisition is released.
func (a *acquisition) track(screen int, conn Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.conns[screen] = conn
	return true
}

// untrack reports whether conn was still owned by the screen, in which case
// the caller closes it. Otherwise release already did.
func (a *acquisition) untrack(screen int, conn Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns[screen] == conn {
		delete(a.conns, screen)
		return true
	}
	return false
}

func (a *acquisition) release() {
	a.once.Do(func() {
		a.cancel()

		a.mu.Lock()
		a.closed = true
		conns := a.conns
		a.conns = nil
		a.mu.Unlock()

		// Closing unblocks readers stuck in ReadMessage.
		for _, conn := range conns {
			_ = conn.Close()
		}
		a.wg.Wait()
	})
}
