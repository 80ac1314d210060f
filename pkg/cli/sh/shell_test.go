package sh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/rsbus/pkg/msgs"
)

func TestParseFeedbackArgs(t *testing.T) {
	cmd, err := parseFeedbackArgs([]string{"5", "0xa5"})
	require.NoError(t, err)
	assert.Equal(t, &msgs.FeedbackCommand{Address: 5, Value: 0xa5}, cmd)

	cmd, err = parseFeedbackArgs([]string{"128", "high", "12"})
	require.NoError(t, err)
	assert.Equal(t, &msgs.FeedbackCommand{Address: 128, Nibble: msgs.NibbleHigh, Value: 12}, cmd)

	for _, args := range [][]string{
		{"5"},
		{"x", "1"},
		{"5", "256"},
		{"0", "1"},
		{"5", "low", "16"},
		{"5", "middle", "1"},
	} {
		_, err := parseFeedbackArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestFormatStatus(t *testing.T) {
	st := &msgs.Status{
		DeviceId: "dev1",
		SignalOk: true,
		Cycles:   10,
		Connections: []*msgs.ConnectionStatus{
			{Address: 5, Type: "switch", State: "connected", Feedback: 0xa5},
			{Address: 6, Type: "switch", State: "feedback-needed", FeedbackRequested: true},
		},
	}
	assert.Equal(t,
		"dev1: signal ok, cycles 10, parity errors 0, pulse count errors 0, transmitted 0\n"+
			"    5 switch   connected        queued 0 feedback 0xa5\n"+
			"    6 switch   feedback-needed  queued 0 feedback 0x00 (requested)",
		FormatStatus(st))
}
