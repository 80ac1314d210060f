package rsbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEdgeCounter(t *testing.T) {
	c := NewEdgeCounter()
	var polled []uint16
	c.Attach(HandlePulseFunc(func(n uint16) { polled = append(polled, n) }))
	c.Watch(3)
	for i := 0; i < CyclePulses; i++ {
		c.Edge()
	}
	require.Len(t, polled, CyclePulses)
	for i, n := range polled {
		require.Equal(t, uint16(i), n)
	}
	n := c.Pulses()
	require.Equal(t, uint16(CyclePulses), n)
	require.True(t, c.CycleComplete(n))
	require.False(t, c.CycleComplete(n-1))

	c.StartCycle()
	require.Zero(t, c.Pulses())
}

func TestEventCounter(t *testing.T) {
	c := NewEventCounter()
	var polled []uint16
	c.Attach(HandlePulseFunc(func(n uint16) { polled = append(polled, n) }))
	for i := 0; i < CyclePulses; i++ {
		c.Edge()
	}
	require.Empty(t, polled, "nothing watched")
	n := c.Pulses()
	require.Zero(t, n, "wraps at the end of the cycle")
	require.True(t, c.CycleComplete(n))

	c.Watch(5)
	for i := 0; i < CyclePulses-1; i++ {
		c.Edge()
	}
	require.Equal(t, []uint16{5}, polled)
	n = c.Pulses()
	require.Equal(t, uint16(CyclePulses-1), n)
	require.False(t, c.CycleComplete(n))

	c.StartCycle()
	require.Zero(t, c.Pulses())
}
