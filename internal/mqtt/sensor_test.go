package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/feedback-controller/internal/logic"
)

var _ logic.Sensor = (*TopicSensor)(nil)

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(string, func([]byte)) error {
	return errors.New("not connected")
}

func TestTopicSensor(t *testing.T) {
	t.Parallel()

	pub := NewFakePublisher()
	s, err := NewTopicSensor("return", "sensors/return", 40, pub)
	require.NoError(t, err)
	require.Equal(t, "return", s.Name())
	require.True(t, s.LastUpdate().IsZero())

	pub.Deliver("sensors/return", []byte(" 41.75\n"))
	require.InDelta(t, 41.75, s.Read(), 1e-9)
	require.False(t, s.LastUpdate().IsZero())

	pub.Deliver("sensors/return", []byte("n/a"))
	require.InDelta(t, 41.75, s.Read(), 1e-9, "bad payload keeps the last good value")
	require.Equal(t, 1, s.Errors())
}

func TestTopicSensorBeforeFirstMessage(t *testing.T) {
	t.Parallel()

	pub := NewFakePublisher()
	s, err := NewTopicSensor("outdoor", "weather/outdoor", 25, pub)
	require.NoError(t, err)

	ctrl := logic.New(logic.Config{})
	require.ErrorIs(t, ctrl.SetSetpoint(25), logic.ErrNoInputs)
	ctrl.SetAlarm(15, 35, time.Second)
	require.NoError(t, ctrl.DefineInputs([]logic.Sensor{s}, nil, 'T'))

	require.NoError(t, ctrl.Poll())
	require.Equal(t, 25.0, ctrl.Readings()[0].Value)
	require.False(t, ctrl.State())
	require.False(t, ctrl.AlarmActive(), "no alarm before data arrives")
	require.Empty(t, ctrl.TakeEvents())
	require.True(t, s.LastUpdate().IsZero())
	require.Zero(t, s.Errors())
}

func TestTopicSensorSubscribeFailure(t *testing.T) {
	t.Parallel()

	_, err := NewTopicSensor("return", "sensors/return", 0, failingSubscriber{})
	require.Error(t, err)
}
