package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-legobot/internal/log"
)

func TestRegistry_EmptyBeforeInitialize(t *testing.T) {
	r := NewRegistry(NewFullMock(), log.Nop())

	assert.Equal(t, 0, r.Capabilities().Len())
	_, ok := r.Handles().TankDrive()
	assert.False(t, ok)
}

func TestRegistry_InitializeRecordsPresentKinds(t *testing.T) {
	mock := NewMock(Lights, Motors, Speaker, Distance)
	r := NewRegistry(mock, log.Nop())

	require.NoError(t, r.Initialize())

	caps := r.Capabilities()
	assert.Equal(t, []string{"Lights", "Motors", "Speaker", "Distance"}, caps.Strings())

	h := r.Handles()
	_, ok := h.Head()
	assert.False(t, ok, "head is absent")
	_, ok = h.TouchSensor()
	assert.False(t, ok, "button is absent")
	_, ok = h.ProximitySensor()
	assert.True(t, ok)
}

func TestRegistry_AbsentDoesNotBlockOthers(t *testing.T) {
	mock := NewMock(Speaker)
	r := NewRegistry(mock, log.Nop())

	require.NoError(t, r.Initialize())
	assert.Equal(t, []string{"Speaker"}, r.Capabilities().Strings())
}

func TestRegistry_FatalStartupFault(t *testing.T) {
	mock := NewFullMock()
	boom := errors.New("permission denied")
	mock.FailAcquire(Button, boom)
	r := NewRegistry(mock, log.Nop())

	err := r.Initialize()
	require.Error(t, err)

	var se *StartupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Button, se.Kind)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Capabilities().Len(), "failed init publishes nothing")
}

func TestRegistry_FailedReinitKeepsPrevious(t *testing.T) {
	mock := NewMock(Lights, Motors)
	r := NewRegistry(mock, log.Nop())
	require.NoError(t, r.Initialize())

	mock.FailAcquire(Motors, errors.New("port busy"))
	require.Error(t, r.Initialize())

	assert.Equal(t, []string{"Lights", "Motors"}, r.Capabilities().Strings())
}

func TestRegistry_InitializeIdlesActuators(t *testing.T) {
	mock := NewMock(Lights, Motors)
	r := NewRegistry(mock, log.Nop())
	require.NoError(t, r.Initialize())

	tank, _ := r.Handles().TankDrive()
	lights, _ := r.Handles().Lights()
	require.NoError(t, tank.Drive(50, 50))
	require.NoError(t, lights.SetColor(Left, Red))

	require.NoError(t, r.Initialize())

	l, rt := mock.Drive()
	assert.Equal(t, 0, l)
	assert.Equal(t, 0, rt)
	assert.Equal(t, Black, mock.LED(Left))
	assert.Equal(t, Black, mock.LED(Right))
}

func TestRegistry_ReinitReflectsHardwareChange(t *testing.T) {
	mock := NewMock(Lights)
	r := NewRegistry(mock, log.Nop())
	require.NoError(t, r.Initialize())
	assert.False(t, r.Capabilities().Has(Head))

	mock.SetPresent(Head, true)
	require.NoError(t, r.Initialize())
	assert.True(t, r.Capabilities().Has(Head))
}

func TestRegistry_IdleFailureIsFatal(t *testing.T) {
	mock := NewMock(Motors)
	mock.FailCalls(Motors, errors.New("stall"))
	r := NewRegistry(mock, log.Nop())

	var se *StartupError
	require.ErrorAs(t, r.Initialize(), &se)
	assert.Equal(t, Motors, se.Kind)
}
