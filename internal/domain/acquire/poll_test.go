package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	address string
	screen  int
	token   string
	legacy  bool
}

type fakeFetcher struct {
	mu       sync.Mutex
	calls    []fetchCall
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     func(call fetchCall) error
	delay    time.Duration
}

func (f *fakeFetcher) record(ctx context.Context, call fetchCall) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fail := f.fail
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if fail != nil {
		if err := fail(call); err != nil {
			return nil, err
		}
	}
	return []byte(fmt.Sprintf("%s/%d", call.address, call.screen)), nil
}

func (f *fakeFetcher) ScreenImage(ctx context.Context, address string, screen int, token string) ([]byte, error) {
	return f.record(ctx, fetchCall{address: address, screen: screen, token: token})
}

func (f *fakeFetcher) LegacyImage(ctx context.Context, address string, token string) ([]byte, error) {
	return f.record(ctx, fetchCall{address: address, token: token, legacy: true})
}

func (f *fakeFetcher) snapshot() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func TestPollOneRequestPerScreen(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	p := NewPoll(PollConfig{Interval: time.Hour}, fetcher, nil)
	assert.Equal(t, ModePoll, p.Mode())

	sink := newRecordingSink()
	release, err := p.Acquire(context.Background(), threeScreens, sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.totalFrames() == 3 }, time.Second, time.Millisecond)
	release()

	calls := fetcher.snapshot()
	require.Len(t, calls, 3)
	screens := make([]int, 0, 3)
	for _, c := range calls {
		assert.Equal(t, threeScreens.Address, c.address)
		assert.False(t, c.legacy)
		screens = append(screens, c.screen)
	}
	assert.ElementsMatch(t, []int{0, 1, 2}, screens)
	// The three screens refresh concurrently, not one after another.
	assert.Equal(t, int32(3), fetcher.peak.Load())

	for screen := 0; screen < 3; screen++ {
		assert.Equal(t, [][]byte{[]byte(fmt.Sprintf("%s/%d", threeScreens.Address, screen))}, sink.framesFor(screen))
		assert.Equal(t, []types.ConnState{types.ConnConnecting, types.ConnOpen}, sink.statesFor(screen))
	}
}

func TestPollTokensAreUnique(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPoll(PollConfig{Interval: time.Millisecond}, fetcher, nil)

	release, err := p.Acquire(context.Background(), types.MonitorDescriptor{Address: "A1"}, newRecordingSink())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(fetcher.snapshot()) >= 10 }, time.Second, time.Millisecond)
	release()

	seen := make(map[string]bool)
	for _, c := range fetcher.snapshot() {
		require.NotEmpty(t, c.token)
		assert.False(t, seen[c.token], "token reused: %s", c.token)
		seen[c.token] = true
	}
}

func TestPollLegacySingle(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPoll(PollConfig{Interval: time.Hour, LegacySingle: true}, fetcher, nil)

	// Single screen: legacy path.
	release, err := p.Acquire(context.Background(), types.MonitorDescriptor{Address: "A1", ScreenCount: 1}, newRecordingSink())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(fetcher.snapshot()) == 1 }, time.Second, time.Millisecond)
	release()
	assert.True(t, fetcher.snapshot()[0].legacy)

	// Several screens still need per-screen paths.
	fetcher2 := &fakeFetcher{}
	p2 := NewPoll(PollConfig{Interval: time.Hour, LegacySingle: true}, fetcher2, nil)
	release, err = p2.Acquire(context.Background(), types.MonitorDescriptor{Address: "A1", ScreenCount: 2}, newRecordingSink())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(fetcher2.snapshot()) == 2 }, time.Second, time.Millisecond)
	release()
	for _, c := range fetcher2.snapshot() {
		assert.False(t, c.legacy)
	}
}

func TestPollFailureSkipsCycle(t *testing.T) {
	var n atomic.Int32
	fetcher := &fakeFetcher{fail: func(fetchCall) error {
		if n.Add(1) <= 2 {
			return errors.New("503")
		}
		return nil
	}}
	p := NewPoll(PollConfig{Interval: 2 * time.Millisecond}, fetcher, nil)
	sink := newRecordingSink()

	release, err := p.Acquire(context.Background(), types.MonitorDescriptor{Address: "A1"}, sink)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sink.frameCount(0) >= 2 }, time.Second, time.Millisecond)
	release()

	// Errored reported once for the failing streak, then open again.
	assert.Equal(t, []types.ConnState{types.ConnConnecting, types.ConnErrored, types.ConnOpen}, sink.statesFor(0))
	sink.mu.Lock()
	assert.ErrorIs(t, sink.states[1].err, ErrConnection)
	sink.mu.Unlock()
}

func TestPollFailuresKeepTimerRunning(t *testing.T) {
	fetcher := &fakeFetcher{fail: func(fetchCall) error { return errors.New("503") }}
	p := NewPoll(PollConfig{Interval: 2 * time.Millisecond}, fetcher, nil)
	sink := newRecordingSink()

	release, err := p.Acquire(context.Background(), types.MonitorDescriptor{Address: "A1"}, sink)
	require.NoError(t, err)
	defer release()

	require.Eventually(t, func() bool { return len(fetcher.snapshot()) >= 5 }, time.Second, time.Millisecond)
	st, ok := sink.lastState(0)
	require.True(t, ok)
	assert.Equal(t, types.ConnErrored, st.state)
	// Errored is not the end of a polled screen; the next cycle still runs.
	assert.Empty(t, sink.endedScreens())
}

func TestPollReleaseStopsTimer(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPoll(PollConfig{Interval: time.Millisecond}, fetcher, nil)
	sink := newRecordingSink()

	release, err := p.Acquire(context.Background(), threeScreens, sink)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sink.totalFrames() >= 6 }, time.Second, time.Millisecond)

	release()
	release()

	calls := len(fetcher.snapshot())
	events := sink.eventCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, len(fetcher.snapshot()), "timer fired after release")
	assert.Equal(t, events, sink.eventCount())
}

func TestPollReleaseCancelsInFlightRequest(t *testing.T) {
	fetcher := &fakeFetcher{delay: time.Hour}
	p := NewPoll(PollConfig{Interval: time.Hour}, fetcher, nil)
	sink := newRecordingSink()

	release, err := p.Acquire(context.Background(), types.MonitorDescriptor{Address: "A1"}, sink)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fetcher.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("release blocked on in-flight request")
	}
	assert.Zero(t, sink.totalFrames())
}

func TestPollCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPoll(PollConfig{}, &fakeFetcher{}, nil)
	_, err := p.Acquire(ctx, types.MonitorDescriptor{Address: "A1"}, newRecordingSink())
	assert.ErrorIs(t, err, context.Canceled)
}
