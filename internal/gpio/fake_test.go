package gpio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/feedback-controller/internal/logic"
)

var (
	_ Output              = (*FakeRelay)(nil)
	_ Signaler            = (*FakeBuzzer)(nil)
	_ logic.OutputDevice  = (*FakeRelay)(nil)
	_ logic.AlarmSignaler = (*FakeBuzzer)(nil)
	_ Output              = (*Relay)(nil)
	_ Signaler            = (*Buzzer)(nil)
)

func TestFakeRelayRecords(t *testing.T) {
	t.Parallel()

	f := NewFakeRelay("burner")
	require.Equal(t, "burner", f.Name())
	require.False(t, f.Energized(), "de-energized before any drive")

	f.SetEnergized(true)
	f.SetEnergized(true)
	f.SetEnergized(false)

	require.Equal(t, []bool{true, true, false}, f.History())
	require.False(t, f.Energized())
}

func TestFakeRelayHistoryIsCopy(t *testing.T) {
	t.Parallel()

	f := NewFakeRelay("pump")
	f.SetEnergized(true)

	h := f.History()
	h[0] = false
	require.True(t, f.Energized())
}

func TestFakeRelayClose(t *testing.T) {
	t.Parallel()

	f := NewFakeRelay("pump")
	require.False(t, f.Closed)
	require.NoError(t, f.Close())
	require.True(t, f.Closed)

	f = NewFakeRelay("pump")
	f.CloseError = ErrSimulated
	require.ErrorIs(t, f.Close(), ErrSimulated)
}

func TestFakeBuzzer(t *testing.T) {
	t.Parallel()

	var b FakeBuzzer
	b.Pulse()
	b.Pulse()
	require.Equal(t, 2, b.Pulses())
	require.NoError(t, b.Close())
	require.True(t, b.Closed)
}

func TestControllerDrivesFakeRelays(t *testing.T) {
	t.Parallel()

	a, b := NewFakeRelay("a"), NewFakeRelay("b")
	c := logic.New(logic.Config{})
	c.DefineOutputs([]logic.OutputDevice{a, b})

	require.Equal(t, []bool{false}, a.History())
	require.Equal(t, []bool{false}, b.History())
}
