package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListMonitors(ctx context.Context) (types.MonitorList, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(types.MonitorList), args.Error(1)
}

// funcLister adapts a function for tests that need per-call behavior.
type funcLister func(ctx context.Context) (types.MonitorList, error)

func (f funcLister) ListMonitors(ctx context.Context) (types.MonitorList, error) { return f(ctx) }

var (
	alice = types.MonitorDescriptor{Address: "A1", User: "alice", Host: "desk1", ScreenCount: 1}
	bob   = types.MonitorDescriptor{Address: "B2", User: "bob", Host: "lab", ScreenCount: 3}
)

func TestRefreshReplacesSnapshot(t *testing.T) {
	lister := new(mockLister)
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{alice}, nil).Once()
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{bob}, nil).Once()

	m := NewManager(lister, nil)
	assert.Empty(t, m.Snapshot())

	list, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.MonitorList{alice}, list)

	list, err = m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.MonitorList{bob}, list)
	assert.Equal(t, types.MonitorList{bob}, m.Snapshot())

	lister.AssertExpectations(t)
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	cause := errors.New("connection refused")
	lister := new(mockLister)
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{alice, bob}, nil).Once()
	lister.On("ListMonitors", mock.Anything).Return(nil, cause).Once()

	m := NewManager(lister, nil)
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	list, err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistryFetch)
	assert.ErrorIs(t, err, cause)

	var fetchErr *RegistryFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, cause, fetchErr.Cause)

	assert.Equal(t, types.MonitorList{alice, bob}, list)
	assert.Equal(t, types.MonitorList{alice, bob}, m.Snapshot())
	assert.Equal(t, "connection refused", m.Status().LastError)
	assert.Equal(t, 2, m.Status().Monitors)
}

func TestSnapshotIsACopy(t *testing.T) {
	lister := new(mockLister)
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{alice}, nil)

	m := NewManager(lister, nil)
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	snap := m.Snapshot()
	snap[0].User = "mallory"
	assert.Equal(t, "alice", m.Snapshot()[0].User)
}

func TestSubscribeOnlyOnChange(t *testing.T) {
	lister := new(mockLister)
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{alice}, nil).Twice()
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{alice, bob}, nil).Once()

	m := NewManager(lister, nil)
	var got []types.MonitorList
	unsubscribe := m.Subscribe(func(list types.MonitorList) {
		got = append(got, list)
	})

	for i := 0; i < 3; i++ {
		_, err := m.Refresh(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []types.MonitorList{{alice}, {alice, bob}}, got)

	unsubscribe()
	lister.On("ListMonitors", mock.Anything).Return(types.MonitorList{bob}, nil).Once()
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStaleResponseDoesNotOverwriteNewer(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	lister := funcLister(func(ctx context.Context) (types.MonitorList, error) {
		if calls.Add(1) == 1 {
			<-release
			return types.MonitorList{alice}, nil
		}
		return types.MonitorList{bob}, nil
	})

	m := NewManager(lister, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = m.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	close(release)
	wg.Wait()

	assert.Equal(t, types.MonitorList{bob}, m.Snapshot())
}

func TestStartOneShot(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(funcLister(func(ctx context.Context) (types.MonitorList, error) {
		calls.Add(1)
		return types.MonitorList{alice}, nil
	}), nil)

	stop := m.Start(context.Background(), 0)
	require.Eventually(t, func() bool { return len(m.Snapshot()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestStartIntervalAndStop(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(funcLister(func(ctx context.Context) (types.MonitorList, error) {
		n := calls.Add(1)
		list := types.MonitorList{alice}
		if n%2 == 0 {
			list = append(list, bob)
		}
		return list, nil
	}), nil)

	stop := m.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	stop()
	stop() // idempotent

	after := calls.Load()
	snap := m.Snapshot()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no refresh after stop")
	assert.Equal(t, snap, m.Snapshot())

	// Manual refreshes after stop do not mutate either.
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap, m.Snapshot())
}
