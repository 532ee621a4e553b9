package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/protocol"
)

// fakeConn is an in-memory websocket connection. After release it counts
// every call, the way a recycled connection would be misused.
type fakeConn struct {
	inbound chan []byte

	mu       sync.Mutex
	written  [][]byte
	closed   bool
	done     chan struct{}
	hungUp   chan struct{}
	hangOnce sync.Once
	expired  chan struct{}
	expOnce  sync.Once

	released atomic.Bool
	misuse   atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		done:    make(chan struct{}),
		hungUp:  make(chan struct{}),
		expired: make(chan struct{}),
	}
}

func (f *fakeConn) use() {
	if f.released.Load() {
		f.misuse.Add(1)
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.use()
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.done:
		return 0, nil, errors.New("closed")
	case <-f.hungUp:
		return 0, nil, errors.New("peer went away")
	case <-f.expired:
		return 0, nil, errors.New("i/o timeout")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.use()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	if messageType == websocket.TextMessage {
		f.written = append(f.written, data)
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64) { f.use() }

func (f *fakeConn) SetReadDeadline(t time.Time) error {
	f.use()
	if !t.IsZero() && !t.After(time.Now()) {
		f.expOnce.Do(func() { close(f.expired) })
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { f.use(); return nil }
func (f *fakeConn) SetPongHandler(func(string) error) { f.use() }

func (f *fakeConn) Close() error {
	f.use()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// hangUp simulates the remote side dropping the connection
func (f *fakeConn) hangUp() {
	f.hangOnce.Do(func() { close(f.hungUp) })
}

func (f *fakeConn) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := startHub(t)

	a, b := newFakeConn(), newFakeConn()
	ca, cb := NewClient(h, a), NewClient(h, b)
	require.NotNil(t, ca)
	require.NotNil(t, cb)
	go ca.Run()
	go cb.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	msg, err := protocol.NewMotorsMessage(protocol.MotorsData{Left: 10, Right: 10, Armed: true})
	require.NoError(t, err)
	require.NoError(t, h.BroadcastMessage(msg))

	for _, conn := range []*fakeConn{a, b} {
		conn := conn
		require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
		parsed, err := protocol.ParseMessage(conn.messages()[0])
		require.NoError(t, err)
		assert.Equal(t, protocol.TypeMotors, parsed.Type)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := startHub(t)

	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.hangUp()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
	assert.False(t, c.Send([]byte("late")))
}

func TestHub_OnMessage(t *testing.T) {
	h := New("test", log.Nop())
	got := make(chan string, 1)
	h.OnMessage(func(c *Client, data []byte) {
		got <- string(data)
		c.Send([]byte(`{"type":"pong"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()

	conn.inbound <- []byte(`{"type":"ping"}`)
	select {
	case data := <-got:
		assert.Equal(t, `{"type":"ping"}`, data)
	case <-time.After(time.Second):
		t.Fatal("message handler not called")
	}
	assert.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("test", log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return !h.IsRunning() && h.ClientCount() == 0 }, time.Second, time.Millisecond)
	assert.Nil(t, NewClient(h, newFakeConn()), "stopped hub accepts no clients")
}

func TestHub_BroadcastJSON(t *testing.T) {
	h := New("test", log.Nop())
	assert.Error(t, h.BroadcastJSON(make(chan int)))
	assert.NoError(t, h.BroadcastJSON(map[string]int{"n": 1}))
}

func TestClient_RunReleasesConnectionLast(t *testing.T) {
	h := startHub(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast([]byte(`{"type":"motors"}`))
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	var conns []*fakeConn
	for i := 0; i < 200; i++ {
		conn := newFakeConn()
		conns = append(conns, conn)
		c := NewClient(h, conn)
		require.NotNil(t, c)

		returned := make(chan struct{})
		go func() {
			c.Run()
			conn.released.Store(true)
			close(returned)
		}()

		conn.hangUp()
		select {
		case <-returned:
		case <-time.After(2 * time.Second):
			t.Fatalf("cycle %d: Run did not return after the peer hung up", i)
		}
		conn.mu.Lock()
		closed := conn.closed
		conn.mu.Unlock()
		require.True(t, closed, "cycle %d: connection not closed", i)
	}

	// Give any stray writer a chance to touch a released connection
	time.Sleep(20 * time.Millisecond)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
	for i, conn := range conns {
		assert.Zero(t, conn.misuse.Load(), "connection %d used after release", i)
	}
}

func TestClient_RunReturnsWhenHubStops(t *testing.T) {
	h := New("test", log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := newFakeConn()
	c := NewClient(h, conn)
	require.NotNil(t, c)

	returned := make(chan struct{})
	go func() {
		c.Run()
		close(returned)
	}()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the hub stopped")
	}
	assert.Zero(t, conn.misuse.Load())
}
