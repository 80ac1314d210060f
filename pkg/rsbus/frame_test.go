package rsbus

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeNibble(t *testing.T) {
	testCases := []struct {
		name   string
		pos    Nibble
		value  uint8
		typ    DeviceType
		expect Frame
	}{
		{"low bit 1 switch", LowBits, 0x1, Switch, 0x84},
		{"low all switch", LowBits, 0xf, Switch, 0xf5},
		{"high zero feedback", HighBits, 0x0, Feedback, 0x0a},
		{"high bit 4 feedback", HighBits, 0x8, Feedback, 0x1b},
		{"value masked", LowBits, 0xf1, Switch, 0x84},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := EncodeNibble(tc.pos, tc.value, tc.typ)
			require.Equal(t, tc.expect, f, "got %s", f)
		})
	}
}

func TestEncodeNibbleParity(t *testing.T) {
	for _, typ := range []DeviceType{Switch, Feedback} {
		for _, pos := range []Nibble{LowBits, HighBits} {
			for v := uint8(0); v < 16; v++ {
				f := EncodeNibble(pos, v, typ)
				require.Zero(t, bits.OnesCount8(uint8(f))&1, "%s %s %d", typ, pos, v)
				require.True(t, f.ParityOK())
				require.Equal(t, pos, f.Nibble())
				require.Equal(t, typ, f.Type())
				require.Equal(t, v, f.Data())
			}
		}
	}
}

func TestEncodeByte(t *testing.T) {
	lo, hi := EncodeByte(0xa5, Switch)
	require.Equal(t, Frame(0xa5), lo)
	require.Equal(t, Frame(0x5c), hi)

	for v := 0; v < 256; v++ {
		for _, typ := range []DeviceType{Switch, Feedback} {
			lo, hi := EncodeByte(uint8(v), typ)
			decoded, err := DecodeByte(lo, hi)
			require.NoError(t, err)
			require.Equal(t, uint8(v), decoded)
		}
	}
}

func TestDecodeByteErrors(t *testing.T) {
	lo, hi := EncodeByte(0x3c, Feedback)
	_, err := DecodeByte(hi, lo)
	require.Equal(t, ErrNibbleOrder, err)
	_, err = DecodeByte(lo^0x80, hi)
	require.Equal(t, ErrParity, err)
	_, err = DecodeByte(lo, hi^0x01)
	require.Equal(t, ErrParity, err)
}

func TestParseDeviceType(t *testing.T) {
	typ, err := ParseDeviceType("feedback")
	require.NoError(t, err)
	require.Equal(t, Feedback, typ)
	typ, err = ParseDeviceType("")
	require.NoError(t, err)
	require.Equal(t, Switch, typ)
	_, err = ParseDeviceType("decoder")
	require.Error(t, err)
}
