package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeASCII(t *testing.T) {
	cases := []struct {
		name  string
		words []uint16
		want  string
	}{
		{name: "empty", words: nil, want: ""},
		{name: "plain", words: []uint16{0x454D, 0x5335, 0x3934, 0x3433}, want: "EMS59443"},
		{name: "stops at nul", words: []uint16{0x4142, 0x4300}, want: "AB"},
		{name: "nul then garbage", words: []uint16{0x4142, 0x0043}, want: "AB"},
		{name: "trims spaces", words: []uint16{0x2041, 0x4220}, want: "AB"},
		{name: "all nul", words: []uint16{0x0000, 0x0000}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DecodeASCII(tc.words))
		})
	}
}

func TestDecodeFloat32(t *testing.T) {
	value, ok := DecodeFloat32([]uint16{0x4048, 0xF5C3})
	require.True(t, ok)
	require.InDelta(t, 3.14, value, 0.0001)

	_, ok = DecodeFloat32([]uint16{0x4048})
	require.False(t, ok)
	_, ok = DecodeFloat32(nil)
	require.False(t, ok)
	_, ok = DecodeFloat32([]uint16{1, 2, 3})
	require.False(t, ok)

	neg, ok := DecodeFloat32([]uint16{0xC29E, 0x0000})
	require.True(t, ok)
	require.InDelta(t, -79.0, neg, 0.0001)
}

func TestDecodeUInt16(t *testing.T) {
	value, ok := DecodeUInt16([]uint16{0x002A, 0xFFFF})
	require.True(t, ok)
	require.Equal(t, uint16(42), value)

	_, ok = DecodeUInt16(nil)
	require.False(t, ok)
}

func TestDecodeHexID(t *testing.T) {
	cases := []struct {
		name  string
		words []uint16
		want  string
	}{
		{name: "trailing zeros dropped", words: []uint16{0x0012, 0x0000, 0x0000, 0x0000}, want: "0012"},
		{name: "truncated to eight chars", words: []uint16{0xABCD, 0x1234, 0x5678}, want: "ABCD1234"},
		{name: "interior zero kept", words: []uint16{0xAB00, 0x0000, 0x0001, 0x0000}, want: "AB000000"},
		{name: "empty", words: nil, want: ""},
		{name: "all zero", words: []uint16{0, 0, 0}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DecodeHexID(tc.words))
		})
	}
}

func TestDecodeUInt64(t *testing.T) {
	value, ok := DecodeUInt64([]uint16{0x0001, 0x0000})
	require.True(t, ok)
	require.Equal(t, uint64(0x10000), value)

	value, ok = DecodeUInt64([]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF})
	require.True(t, ok)
	require.Equal(t, uint64(math.MaxUint64), value)

	_, ok = DecodeUInt64(nil)
	require.False(t, ok)
	_, ok = DecodeUInt64(make([]uint16, 5))
	require.False(t, ok)
}

func TestClassify(t *testing.T) {
	require.Equal(t, DeviceCL110, Classify("EMS59443"))
	require.Equal(t, DeviceTH110, Classify("EMS59440"))
	require.Equal(t, DeviceHeatTag, Classify("SMT10020"))
	require.Equal(t, DeviceUnknown, Classify("XYZ"))
	require.Equal(t, DeviceUnknown, Classify(""))
}

func TestDiagnosticPlan(t *testing.T) {
	require.Len(t, DiagnosticPlan(DeviceTH110), 8)
	require.Len(t, DiagnosticPlan(DeviceCL110), 9)
	require.Len(t, DiagnosticPlan(DeviceHeatTag), 11)
	require.Empty(t, DiagnosticPlan(DeviceUnknown))

	plan := DiagnosticPlan(DeviceCL110)
	last := plan[len(plan)-1]
	require.Equal(t, FieldBatteryVoltage, last.Name)
	require.Equal(t, uint16(3315), last.Address)
	require.Equal(t, KindFloat32, last.Kind)
}
