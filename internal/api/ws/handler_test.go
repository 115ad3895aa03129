package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/view"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSelector struct {
	mock.Mock
}

func (m *mockSelector) Select(ctx context.Context, address string) (types.Selection, error) {
	args := m.Called(address)
	return args.Get(0).(types.Selection), args.Error(1)
}

func (m *mockSelector) Clear() {
	m.Called()
}

var alice = types.MonitorDescriptor{Address: "A1", User: "alice", Host: "desk1", ScreenCount: 1}

// viewState is a tiny mutable source for composed views.
type viewState struct {
	mu     sync.Mutex
	header *view.Header
}

func (s *viewState) set(h *view.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = h
}

func (s *viewState) compose() view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view.View{
		Mode:    "stream",
		Entries: []view.Entry{{Address: "A1", Label: alice.Label(), Screens: 1}},
		Header:  s.header,
		Screens: []view.Screen{},
	}
}

type inbound struct {
	Type  string     `json:"type"`
	View  *view.View `json:"view"`
	Error string     `json:"error"`
}

func setup(t *testing.T, selector Selector, cfg Config) (*Handler, *viewState, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	state := &viewState{}
	h := NewHandler(selector, state.compose, cfg, nil).WithMetrics(monitoring.NewMetrics())
	router := gin.New()
	router.GET("/stream", h.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return h, state, conn
}

func read(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg inbound
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg types.WSMessage) {
	t.Helper()
	data, err := sonic.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestInitialViewIsPushed(t *testing.T) {
	h, _, conn := setup(t, new(mockSelector), Config{})

	msg := read(t, conn)
	assert.Equal(t, "view", msg.Type)
	require.NotNil(t, msg.View)
	require.Len(t, msg.View.Entries, 1)
	assert.Equal(t, "alice (desk1 - A1)", msg.View.Entries[0].Label)
	assert.Nil(t, msg.View.Header)
	assert.Eventually(t, func() bool { return h.Viewers() == 1 }, time.Second, 10*time.Millisecond)
}

func TestNotifyPushesChangedView(t *testing.T) {
	h, state, conn := setup(t, new(mockSelector), Config{})
	read(t, conn)

	state.set(&view.Header{Title: "Active Monitor (alice)", ShowStop: true})
	h.Notify()

	msg := read(t, conn)
	assert.Equal(t, "view", msg.Type)
	require.NotNil(t, msg.View.Header)
	assert.Equal(t, "Active Monitor (alice)", msg.View.Header.Title)
}

func TestNotifyBurstsCoalesce(t *testing.T) {
	h, _, conn := setup(t, new(mockSelector), Config{MinInterval: 200 * time.Millisecond})
	read(t, conn)

	for i := 0; i < 100; i++ {
		h.Notify()
	}

	// At most two pushes: one in flight and one coalesced.
	pushes := 0
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
		pushes++
	}
	assert.GreaterOrEqual(t, pushes, 1)
	assert.LessOrEqual(t, pushes, 2)
}

func TestSelectAndClearCommands(t *testing.T) {
	selector := new(mockSelector)
	selector.On("Select", "A1").Return(types.SelectionOf(alice), nil).Once()
	selector.On("Clear").Return().Once()

	_, _, conn := setup(t, selector, Config{})
	read(t, conn)

	send(t, conn, types.WSMessage{Type: "select", Address: "A1"})
	send(t, conn, types.WSMessage{Type: "clear"})
	send(t, conn, types.WSMessage{Type: "ping"})

	msg := read(t, conn)
	assert.Equal(t, "pong", msg.Type)
	selector.AssertExpectations(t)
}

func TestCommandErrors(t *testing.T) {
	selector := new(mockSelector)
	selector.On("Select", "ZZ").Return(types.Selection{}, assert.AnError).Once()

	_, _, conn := setup(t, selector, Config{})
	read(t, conn)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "unknown type", raw: `{"type":"dance"}`, want: "unknown message type"},
		{name: "missing address", raw: `{"type":"select"}`, want: "address is required"},
		{name: "malformed json", raw: `{"type":`, want: "malformed message"},
		{name: "select failure", raw: `{"type":"select","address":"ZZ"}`, want: assert.AnError.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			msg := read(t, conn)
			assert.Equal(t, "error", msg.Type)
			assert.Equal(t, tt.want, msg.Error)
		})
	}
	selector.AssertExpectations(t)
}

func TestCloseDisconnectsViewers(t *testing.T) {
	h, _, conn := setup(t, new(mockSelector), Config{})
	read(t, conn)

	h.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Eventually(t, func() bool { return h.Viewers() == 0 }, 5*time.Second, 10*time.Millisecond)
}
