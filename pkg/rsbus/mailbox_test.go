package rsbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMailboxHandoff(t *testing.T) {
	var m Mailbox
	require.False(t, m.Offer(0, 0x84))
	require.False(t, m.Offer(MaxAddress+1, 0x84))

	require.True(t, m.Offer(5, 0x84))
	require.False(t, m.Offer(6, 0x0a), "slot must hold a single frame")
	addr, f, ok := m.Pending()
	require.True(t, ok)
	require.Equal(t, uint8(5), addr)
	require.Equal(t, Frame(0x84), f)

	_, ok = m.Take(5)
	require.False(t, ok, "not armed")

	addr, ok = m.Arm()
	require.True(t, ok)
	require.Equal(t, uint8(5), addr)
	require.True(t, m.Armed())

	_, ok = m.Take(4)
	require.False(t, ok)
	f, ok = m.Take(5)
	require.True(t, ok)
	require.Equal(t, Frame(0x84), f)

	_, _, ok = m.Pending()
	require.False(t, ok)
	require.False(t, m.Armed())
	_, ok = m.Take(5)
	require.False(t, ok)
}

func TestMailboxArmEmpty(t *testing.T) {
	var m Mailbox
	_, ok := m.Arm()
	require.False(t, ok)
	require.False(t, m.Armed())
}

func TestMailboxDropDisarm(t *testing.T) {
	var m Mailbox
	require.True(t, m.Offer(MaxAddress, 0x1b))
	_, ok := m.Arm()
	require.True(t, ok)

	m.Disarm()
	require.False(t, m.Armed())
	addr, f, ok := m.Pending()
	require.True(t, ok)
	require.Equal(t, uint8(MaxAddress), addr)
	require.Equal(t, Frame(0x1b), f)

	m.Drop(7)
	_, _, ok = m.Pending()
	require.True(t, ok, "held by another address")
	m.Drop(MaxAddress)
	_, _, ok = m.Pending()
	require.False(t, ok)

	require.True(t, m.Offer(1, 0))
	m.Clear()
	_, _, ok = m.Pending()
	require.False(t, ok)
}
