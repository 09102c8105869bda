package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acudp-mock/internal/model"
)

func TestDecodeHeader(t *testing.T) {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:], 7)
	binary.LittleEndian.PutUint32(b[4:], 1)
	binary.LittleEndian.PutUint32(b[8:], 1)
	binary.LittleEndian.PutUint32(b[12:], 0xdeadbeef) // trailing bytes are ignored

	h, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, Header{Identifier: 7, Version: 1, OperationID: OpSubscribe}, h)
}

func TestDecodeHeaderNegativeFields(t *testing.T) {
	h, err := DecodeHeader(EncodeHeader(Header{Identifier: -1, Version: -2, OperationID: -3}))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), h.Identifier)
	assert.Equal(t, int32(-2), h.Version)
	assert.Equal(t, Operation(-3), h.OperationID)
}

func TestDecodeHeaderTooShort(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		_, err := DecodeHeader(make([]byte, n))
		if !errors.Is(err, ErrMalformedPacket) {
			t.Errorf("len=%d: expected ErrMalformedPacket, got %v", n, err)
		}
	}
}

func TestEncodeHandshakeAck(t *testing.T) {
	ack := EncodeHandshakeAck()
	require.Len(t, ack, HandshakeAckSize)
	assert.Equal(t, []byte{1, 0, 0, 0}, ack)
}

func TestEncodeTelemetryFrameLayout(t *testing.T) {
	s := model.TelemetrySample{
		SpeedKmh:          212.5,
		RPM:               7123.25,
		Gear:              5,
		ThrottlePercent:   85,
		BrakePercent:      12.5,
		SteerAngleRadians: -0.75,
		ABSPercent:        33,
		TCPercent:         7.5,
	}

	b := EncodeTelemetryFrame(s)
	require.Len(t, b, FrameSize)

	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	i32 := func(off int) int32 { return int32(binary.LittleEndian.Uint32(b[off:])) }

	assert.Equal(t, int32(2), i32(0))
	assert.Equal(t, float32(212.5), f32(4))
	assert.Equal(t, float32(7123.25), f32(28))
	assert.Equal(t, int32(5), i32(32))
	assert.Equal(t, float32(85), f32(36))
	assert.Equal(t, float32(12.5), f32(40))
	assert.Equal(t, float32(-0.75), f32(44))
	assert.Equal(t, float32(33), f32(48))
	assert.Equal(t, float32(7.5), f32(52))

	for _, off := range []int{8, 12, 16, 20, 24, 56, 60} {
		assert.Equal(t, []byte{0, 0, 0, 0}, b[off:off+4], "padding at offset %d", off)
	}
}

func TestTelemetryFrameRoundTrip(t *testing.T) {
	s := model.TelemetrySample{
		SpeedKmh:          173.3141,
		RPM:               6021.77,
		Gear:              4,
		ThrottlePercent:   100,
		BrakePercent:      0,
		SteerAngleRadians: 1.2345,
		ABSPercent:        0,
		TCPercent:         21.9876,
	}

	got, err := DecodeTelemetryFrame(EncodeTelemetryFrame(s))
	require.NoError(t, err)

	assert.InDelta(t, s.SpeedKmh, got.SpeedKmh, 1e-4)
	assert.InDelta(t, s.RPM, got.RPM, 1e-4)
	assert.Equal(t, s.Gear, got.Gear)
	assert.InDelta(t, s.ThrottlePercent, got.ThrottlePercent, 1e-4)
	assert.InDelta(t, s.BrakePercent, got.BrakePercent, 1e-4)
	assert.InDelta(t, s.SteerAngleRadians, got.SteerAngleRadians, 1e-4)
	assert.InDelta(t, s.ABSPercent, got.ABSPercent, 1e-4)
	assert.InDelta(t, s.TCPercent, got.TCPercent, 1e-4)
}

func TestDecodeTelemetryFrameShortForm(t *testing.T) {
	full := EncodeTelemetryFrame(model.TelemetrySample{SpeedKmh: 150, RPM: 5000, Gear: 3, ThrottlePercent: 100})

	got, err := DecodeTelemetryFrame(full[:40])
	require.NoError(t, err)
	assert.Equal(t, float32(150), got.SpeedKmh)
	assert.Equal(t, int32(3), got.Gear)
	assert.Zero(t, got.ThrottlePercent, "driver inputs need a 56-byte frame")
}

func TestDecodeTelemetryFrameErrors(t *testing.T) {
	wrongID := EncodeTelemetryFrame(model.TelemetrySample{})
	binary.LittleEndian.PutUint32(wrongID, 9)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"id only", EncodeTelemetryFrame(model.TelemetrySample{})[:4]},
		{"truncated before gear", EncodeTelemetryFrame(model.TelemetrySample{})[:32]},
		{"wrong packet id", wrongID},
		{"handshake ack", EncodeHandshakeAck()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTelemetryFrame(tt.data)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "handshake", OpHandshake.String())
	assert.Equal(t, "subscribe", OpSubscribe.String())
	assert.Equal(t, "operation(42)", Operation(42).String())
}
