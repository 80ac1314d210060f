package rsbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rsbus/pkg/rsbus"
	"github.com/robotalks/rsbus/pkg/rsbus/bustest"
)

type counterCase struct {
	name string
	src  func() rsbus.PulseSource
}

var counterCases = []counterCase{
	{"edge", func() rsbus.PulseSource { return rsbus.NewEdgeCounter() }},
	{"event", func() rsbus.PulseSource { return rsbus.NewEventCounter() }},
}

func newTrace(t *testing.T, src rsbus.PulseSource, opts ...rsbus.Option) *bustest.Trace {
	bus, err := rsbus.New(src, nil, opts...)
	require.NoError(t, err)
	return bustest.NewTrace(bus, src)
}

func forEachCounter(t *testing.T, fn func(t *testing.T, newSrc func() rsbus.PulseSource)) {
	for _, cc := range counterCases {
		t.Run(cc.name, func(t *testing.T) {
			fn(t, cc.src)
		})
	}
}

func TestMonitorCompleteCycle(t *testing.T) {
	forEachCounter(t, func(t *testing.T, newSrc func() rsbus.PulseSource) {
		tr := newTrace(t, newSrc())
		require.False(t, tr.Bus.SignalOK())
		tr.Pulses(rsbus.CyclePulses).Silence(1)
		require.False(t, tr.Bus.SignalOK(), "still inconclusive")
		tr.Silence(2)
		require.True(t, tr.Bus.SignalOK())
		require.Zero(t, tr.Bus.PulseCountErrors())
		require.Zero(t, tr.Bus.ParityErrors())

		tr.Cycles(10)
		s := tr.Bus.Stats()
		require.True(t, s.SignalOK)
		require.EqualValues(t, 11, s.Cycles)
		require.Zero(t, s.PulseCountErrors)
	})
}

func TestMonitorNoPulses(t *testing.T) {
	forEachCounter(t, func(t *testing.T, newSrc func() rsbus.PulseSource) {
		tr := newTrace(t, newSrc())
		tr.Silence(20)
		require.False(t, tr.Bus.SignalOK())
		require.Zero(t, tr.Bus.PulseCountErrors())
		require.Zero(t, tr.Bus.ParityErrors())
	})
}

func TestMonitorPulseCountError(t *testing.T) {
	forEachCounter(t, func(t *testing.T, newSrc func() rsbus.PulseSource) {
		tr := newTrace(t, newSrc())
		tr.Cycle()
		require.True(t, tr.Bus.SignalOK())

		tr.Pulses(rsbus.CyclePulses - 1).Silence(bustest.CycleGapTicks)
		require.EqualValues(t, 1, tr.Bus.PulseCountErrors())
		require.False(t, tr.Bus.SignalOK(), "pulse count errors always retransmit by default")

		tr.Cycle()
		require.True(t, tr.Bus.SignalOK())
		require.EqualValues(t, 1, tr.Bus.PulseCountErrors())
	})
}

func TestMonitorPulseCountErrorUnsynchronized(t *testing.T) {
	tr := newTrace(t, rsbus.NewEdgeCounter())
	tr.Pulses(57).Silence(bustest.CycleGapTicks)
	require.EqualValues(t, 1, tr.Bus.PulseCountErrors())
	require.False(t, tr.Bus.SignalOK())
	tr.Cycle()
	require.True(t, tr.Bus.SignalOK())
}

func TestMonitorPulseCountPolicyNever(t *testing.T) {
	tr := newTrace(t, rsbus.NewEdgeCounter(), rsbus.WithPulseCountPolicy(rsbus.Never))
	tr.Cycle()
	tr.Pulses(rsbus.CyclePulses + 1).Silence(bustest.CycleGapTicks)
	require.EqualValues(t, 1, tr.Bus.PulseCountErrors())
	require.True(t, tr.Bus.SignalOK())
}

func TestMonitorParityGap(t *testing.T) {
	forEachCounter(t, func(t *testing.T, newSrc func() rsbus.PulseSource) {
		tr := newTrace(t, newSrc())
		tr.Cycle()
		// window 5 after the last pulse
		tr.Pulses(rsbus.CyclePulses).Silence(4)
		require.EqualValues(t, 1, tr.Bus.ParityErrors())
		require.True(t, tr.Bus.SignalOK(), "nothing was sent")

		tr.Cycle()
		require.EqualValues(t, 1, tr.Bus.ParityErrors())
		require.True(t, tr.Bus.SignalOK())
	})
}

func TestMonitorParityGapAlways(t *testing.T) {
	tr := newTrace(t, rsbus.NewEdgeCounter(), rsbus.WithParityPolicy(rsbus.Always))
	tr.Cycle()
	tr.Pulses(rsbus.CyclePulses).Silence(4)
	require.EqualValues(t, 1, tr.Bus.ParityErrors())
	require.False(t, tr.Bus.SignalOK())
}

// A gap reaching the signal loss window first passes the parity window.
// The parity error counted there is retracted again when the signal is
// declared lost, even if the parity policy already dropped the signal.
func TestMonitorSignalLossRetractsParityError(t *testing.T) {
	policies := []rsbus.RetransmitPolicy{rsbus.Never, rsbus.IfJustTransmitted, rsbus.Always}
	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			tr := newTrace(t, rsbus.NewEdgeCounter(), rsbus.WithParityPolicy(p))
			tr.Cycle()
			tr.Pulses(rsbus.CyclePulses).Silence(4)
			require.EqualValues(t, 1, tr.Bus.ParityErrors())
			tr.Silence(2)
			require.Zero(t, tr.Bus.ParityErrors())
			require.False(t, tr.Bus.SignalOK())

			tr.Silence(50)
			require.Zero(t, tr.Bus.ParityErrors())
			require.Zero(t, tr.Bus.PulseCountErrors())
			require.False(t, tr.Bus.SignalOK())
		})
	}
}

func TestMonitorRetractionOnlyInSameGap(t *testing.T) {
	tr := newTrace(t, rsbus.NewEdgeCounter())
	tr.Cycle()
	tr.Pulses(rsbus.CyclePulses).Silence(4)
	tr.Pulses(rsbus.CyclePulses).Silence(6)
	require.EqualValues(t, 1, tr.Bus.ParityErrors())
	require.False(t, tr.Bus.SignalOK())
}

func TestCheckPolling(t *testing.T) {
	src := rsbus.NewEdgeCounter()
	bus, err := rsbus.New(src, nil)
	require.NoError(t, err)
	for i := 0; i < rsbus.CyclePulses; i++ {
		src.Edge()
	}
	now := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	step := func(d time.Duration) {
		now = now.Add(d)
		bus.CheckPolling(now)
	}
	step(0)
	step(time.Millisecond)
	step(time.Millisecond)
	step(time.Millisecond)
	require.False(t, bus.SignalOK(), "only two ticks so far")
	step(time.Millisecond)
	require.True(t, bus.SignalOK())
}
