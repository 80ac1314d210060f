package rsbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRetransmitPolicy(t *testing.T) {
	testCases := []struct {
		in     string
		expect RetransmitPolicy
	}{
		{"never", Never},
		{"0", Never},
		{"if-sent", IfJustTransmitted},
		{"1", IfJustTransmitted},
		{"Always", Always},
		{" 2 ", Always},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			p, err := ParseRetransmitPolicy(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.expect, p)
			roundTrip, err := ParseRetransmitPolicy(p.String())
			require.NoError(t, err)
			require.Equal(t, p, roundTrip)
		})
	}
	_, err := ParseRetransmitPolicy("sometimes")
	require.Error(t, err)
}

func TestRetransmitPolicyTriggers(t *testing.T) {
	require.False(t, Never.Triggers(true))
	require.False(t, Never.Triggers(false))
	require.True(t, IfJustTransmitted.Triggers(true))
	require.False(t, IfJustTransmitted.Triggers(false))
	require.True(t, Always.Triggers(true))
	require.True(t, Always.Triggers(false))
}
