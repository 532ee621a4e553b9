package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/hub"
	"github.com/teslashibe/go-legobot/pkg/protocol"
	"github.com/teslashibe/go-legobot/pkg/robot"
	"github.com/teslashibe/go-legobot/pkg/web"
)

var errRefused = errors.New("connection refused")

type fixture struct {
	mock   *device.Mock
	svc    *robot.Service
	caller *bridge.LocalCaller
}

func newFixture(t *testing.T, mock *device.Mock) *fixture {
	t.Helper()
	svc, err := robot.NewService(mock,
		robot.WithLogger(log.Nop()),
		robot.WithButtonPolling(time.Millisecond, 3),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return &fixture{
		mock:   mock,
		svc:    svc,
		caller: bridge.NewLocalCaller(bridge.NewDispatcher(svc, log.Nop())),
	}
}

// connect uses a resend period long enough that only tick() resends
func (f *fixture) connect(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithCaller(f.caller),
		WithLogger(log.Nop()),
		WithResendPeriod(time.Hour),
		WithServerTimeout(2 * time.Hour),
	}, opts...)
	c, err := Connect(context.Background(), "robot.local", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnect_Handshake(t *testing.T) {
	f := newFixture(t, device.NewMock(device.Motors, device.Distance))
	c := f.connect(t)

	assert.Equal(t, []string{robot.MethodDevices}, f.caller.Calls())
	devices, err := c.Devices()
	require.NoError(t, err)
	assert.Equal(t, []string{"Motors", "Distance"}, devices)
	assert.Equal(t, robot.AvailableMethods(f.svc.Capabilities()), c.Methods())
	assert.True(t, c.Supports(robot.MethodGetDistance))
	assert.False(t, c.Supports(robot.MethodSpeak))
	assert.Equal(t, "http://robot.local:8000", c.Addr())
}

func TestConnect_Reinitialize(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	f.connect(t, WithReinitialize())
	assert.Equal(t, []string{robot.MethodInit, robot.MethodDevices}, f.caller.Calls())
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	f.caller.FailWith(errRefused)

	_, err := Connect(context.Background(), "10.0.0.9", WithCaller(f.caller), WithLogger(log.Nop()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "http://10.0.0.9:8000")
	assert.Len(t, f.caller.Calls(), 1, "no retry")
}

func TestConnect_ResendPeriodMustBeShorterThanServerTimeout(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	_, err := Connect(context.Background(), "robot", WithCaller(f.caller),
		WithResendPeriod(5*time.Second), WithServerTimeout(5*time.Second))
	require.Error(t, err)
	assert.Empty(t, f.caller.Calls())
}

func TestClient_UnsupportedFailsLocally(t *testing.T) {
	f := newFixture(t, device.NewMock(device.Motors, device.Lights))
	c := f.connect(t)
	before := len(f.caller.Calls())

	err := c.SetHead(30)
	require.Error(t, err)
	assert.ErrorIs(t, err, robot.ErrUnsupported)
	assert.Contains(t, err.Error(), "Head")

	_, err = c.GetDistance()
	assert.ErrorIs(t, err, robot.ErrUnsupported)

	err = c.Call(context.Background(), "fly", nil, nil)
	assert.ErrorIs(t, err, robot.ErrUnsupported)

	assert.Len(t, f.caller.Calls(), before, "no network calls")
	assert.Empty(t, f.mock.CallsFor(device.Head))
}

func TestClient_SetMotorsRangeCheckedLocally(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)
	before := len(f.caller.Calls())

	err := c.SetMotors(101, 0)
	assert.ErrorIs(t, err, robot.ErrInvalidArgument)
	err = c.SetMotors(0, -101)
	assert.ErrorIs(t, err, robot.ErrInvalidArgument)

	assert.Len(t, f.caller.Calls(), before)
	assert.False(t, c.Intent().Armed)
}

func TestClient_SetMotorsHoldsIntent(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	require.NoError(t, c.SetMotors(30, -30))
	intent := c.Intent()
	assert.Equal(t, 30, intent.Left)
	assert.Equal(t, -30, intent.Right)
	assert.True(t, intent.Armed)

	before := len(f.caller.Calls())
	assert.True(t, c.tick())
	calls := f.caller.Calls()
	require.Len(t, calls, before+1)
	assert.Equal(t, robot.MethodSetMotors, calls[len(calls)-1])
}

func TestClient_StopDisarms(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	require.NoError(t, c.SetMotors(40, 40))
	require.NoError(t, c.SetMotors(0, 0))
	assert.False(t, c.Intent().Armed)

	before := len(f.caller.Calls())
	assert.False(t, c.tick())
	assert.Len(t, f.caller.Calls(), before, "stationary intent is not resent")
}

func TestClient_ResendKeepsServerDriving(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	require.NoError(t, c.SetMotors(30, -30))

	// Server ticks every second, client resends every two
	for i := 1; i <= 30; i++ {
		assert.False(t, f.svc.Tick(), "server watchdog fired at tick %d", i)
		if i%2 == 0 {
			c.tick()
		}
	}

	status, err := f.svc.GetMotors()
	require.NoError(t, err)
	assert.Equal(t, 30, status.Left)
	assert.Equal(t, -30, status.Right)
	assert.True(t, status.Armed)

	l, r := f.mock.Drive()
	assert.Equal(t, -30, l)
	assert.Equal(t, 30, r)
}

func TestClient_SilenceLetsServerStop(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	require.NoError(t, c.SetMotors(40, 40))
	f.caller.FailWith(errRefused)

	fired := false
	for i := 0; i < 6; i++ {
		c.tick() // resend fails and is swallowed
		fired = f.svc.Tick() || fired
	}
	assert.True(t, fired)

	status, err := f.svc.GetMotors()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Left)
	assert.False(t, status.Armed)
	assert.True(t, c.Intent().Armed, "client keeps trying")
}

func TestClient_FaultRollsBackIntent(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	require.NoError(t, c.SetMotors(10, 10))
	f.mock.FailCalls(device.Motors, assert.AnError)

	err := c.SetMotors(50, 50)
	require.Error(t, err)
	assert.True(t, bridge.IsFault(err))
	assert.ErrorIs(t, err, robot.ErrHardware)

	intent := c.Intent()
	assert.Equal(t, 10, intent.Left)
	assert.True(t, intent.Armed)
}

func TestClient_TransportErrorKeepsIntent(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	f.caller.FailWith(errRefused)
	err := c.SetMotors(50, 50)
	require.Error(t, err)
	assert.True(t, bridge.IsTransport(err))

	intent := c.Intent()
	assert.Equal(t, 50, intent.Left)
	assert.True(t, intent.Armed)

	f.caller.FailWith(nil)
	c.tick()
	l, r := f.mock.Drive()
	assert.Equal(t, -50, l)
	assert.Equal(t, -50, r)
}

func TestClient_CallSetMotorsIsHeld(t *testing.T) {
	f := newFixture(t, device.NewFullMock())
	c := f.connect(t)

	var status protocol.StatusResult
	err := c.Call(context.Background(), robot.MethodSetMotors,
		map[string]int{"left_speed": 20, "right_speed": 25}, &status)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, status)
	assert.Equal(t, 25, c.Intent().Right)
	assert.True(t, c.Intent().Armed)
}

func TestClient_ForwardsOperations(t *testing.T) {
	mock := device.NewFullMock()
	mock.SetProximity(60)
	mock.SetColorCode(3)
	f := newFixture(t, mock)
	c := f.connect(t)

	require.NoError(t, c.SetLights(device.Amber, device.Black))
	assert.Equal(t, device.Amber, mock.LED(device.Left))

	require.NoError(t, c.Speak("hi"))
	assert.Equal(t, []string{"hi"}, mock.Spoken())

	cm, err := c.GetDistance()
	require.NoError(t, err)
	assert.Equal(t, 42, cm)

	color, err := c.GetColor()
	require.NoError(t, err)
	assert.Equal(t, "GREEN", color)

	require.NoError(t, c.SetMotors(5, 6))
	status, err := c.GetMotors()
	require.NoError(t, err)
	assert.Equal(t, robot.MotorStatus{Left: 5, Right: 6, Armed: true}, status)

	err = c.SetLights("PURPLE", device.Black)
	assert.ErrorIs(t, err, robot.ErrInvalidArgument)
}

func TestClient_AwaitButton(t *testing.T) {
	mock := device.NewFullMock()
	f := newFixture(t, mock)
	c := f.connect(t)

	mock.SetButton(true)
	require.NoError(t, c.AwaitButtonPressed(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.AwaitButtonReleased(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ok, err := c.WaitButtonReleased()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Tools(t *testing.T) {
	f := newFixture(t, device.NewMock(device.Motors))
	c := f.connect(t)

	var names []string
	for _, tool := range c.Tools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.Parameters["type"])
	}
	assert.ElementsMatch(t, c.Methods(), names)
	assert.NotContains(t, names, robot.MethodSetHead)

	for _, tool := range c.Tools() {
		if tool.Name == robot.MethodSetMotors {
			assert.Equal(t, []string{"left_speed", "right_speed"}, tool.Parameters["required"])
		}
	}
}

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		"192.168.1.20":          "http://192.168.1.20:8000",
		"192.168.1.20:9000":     "http://192.168.1.20:9000",
		"http://ev3.local":      "http://ev3.local:8000",
		"https://ev3.local:443": "https://ev3.local:443",
		"http://ev3.local:80/":  "http://ev3.local:80",
	}
	for in, want := range cases {
		assert.Equal(t, want, BaseURL(in), in)
	}
}

// startServer serves a full robot on a loopback port
func startServer(t *testing.T, mock *device.Mock, opts ...robot.Option) (string, *robot.Service) {
	t.Helper()
	events := hub.New("events", log.Nop())
	opts = append([]robot.Option{
		robot.WithLogger(log.Nop()),
		robot.WithEventHandler(web.EventPublisher(events, 5*time.Second)),
	}, opts...)
	svc, err := robot.NewService(mock, opts...)
	require.NoError(t, err)
	srv := web.NewServer(svc, events, web.Config{Logger: log.Nop()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		svc.Close()
	})
	require.Eventually(t, events.IsRunning, time.Second, time.Millisecond)
	return ln.Addr().String(), svc
}

func TestClient_OverNetwork(t *testing.T) {
	mock := device.NewMock(device.Motors, device.Speaker)
	addr, _ := startServer(t, mock)

	for _, transport := range []Transport{TransportHTTP, TransportWebSocket} {
		t.Run(string(transport), func(t *testing.T) {
			c, err := Connect(context.Background(), addr, WithTransport(transport), WithLogger(log.Nop()))
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, []string{"Motors", "Speaker"}, mustDevices(t, c))
			require.NoError(t, c.Speak(string(transport)))
			assert.ErrorIs(t, c.SetHead(0), robot.ErrUnsupported)
		})
	}
	assert.Equal(t, []string{"http", "ws"}, mock.Spoken())
}

func TestClient_Events(t *testing.T) {
	// A slow server watchdog keeps resends out of the event stream
	addr, svc := startServer(t, device.NewFullMock(), robot.WithWatchdog(time.Hour, 5))
	c, err := Connect(context.Background(), addr, WithLogger(log.Nop()),
		WithResendPeriod(time.Hour), WithServerTimeout(2*time.Hour))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.Events(ctx)
	require.NoError(t, err)

	next := func() *protocol.Message {
		t.Helper()
		select {
		case msg, ok := <-events:
			require.True(t, ok)
			return msg
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return nil
		}
	}

	assert.Equal(t, protocol.TypeDevices, next().Type)

	require.NoError(t, c.SetMotors(20, 20))
	assert.Equal(t, protocol.TypeMotors, next().Type)

	for i := 0; i < 6; i++ {
		svc.Tick()
	}
	msg := next()
	require.Equal(t, protocol.TypeWatchdog, msg.Type)
	data, err := protocol.Decode[protocol.WatchdogData](msg)
	require.NoError(t, err)
	assert.Equal(t, "expired", data.Reason)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestConnect_AdoptsAdvertisedServerTimeout(t *testing.T) {
	addr, _ := startServer(t, device.NewMock(device.Motors), robot.WithWatchdog(time.Second, 3))

	c, err := Connect(context.Background(), addr, WithLogger(log.Nop()),
		WithResendPeriod(2*time.Second), WithServerTimeout(time.Hour))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 3*time.Second, c.ServerTimeout())

	st, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Motors"}, st.Devices)
	assert.Equal(t, int64(3000), st.WatchdogTimeout)
}

func TestConnect_ResendPeriodCheckedAgainstAdvertisedTimeout(t *testing.T) {
	addr, _ := startServer(t, device.NewMock(device.Motors), robot.WithWatchdog(time.Second, 2))

	// The declared timeout would allow it; the robot's does not
	_, err := Connect(context.Background(), addr, WithLogger(log.Nop()),
		WithResendPeriod(2*time.Second), WithServerTimeout(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2s watchdog timeout")
}

func TestConnect_UnreachableOverNetwork(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(context.Background(), addr, WithLogger(log.Nop()))
	assert.ErrorIs(t, err, ErrUnreachable)
}

func mustDevices(t *testing.T, c *Client) []string {
	t.Helper()
	d, err := c.Devices()
	require.NoError(t, err)
	return d
}
