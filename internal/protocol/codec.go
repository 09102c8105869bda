// Package protocol implements the little-endian wire format spoken between the
// telemetry mock and its consumer.
//
// Inbound datagrams start with a 12-byte header of three int32 values
// (identifier, version, operation). Outbound datagrams are either a 4-byte
// handshake acknowledgment or a 64-byte car-info frame whose field offsets are
// fixed by the consumer's parser.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/acudp-mock/internal/model"
)

// Operation identifies the request carried in a header.
type Operation int32

const (
	OpHandshake Operation = 0
	OpSubscribe Operation = 1
)

func (o Operation) String() string {
	switch o {
	case OpHandshake:
		return "handshake"
	case OpSubscribe:
		return "subscribe"
	default:
		return fmt.Sprintf("operation(%d)", int32(o))
	}
}

const (
	HeaderSize       = 12
	HandshakeAckSize = 4
	FrameSize        = 64

	// PacketIDCarInfo is the first int32 of every telemetry frame.
	PacketIDCarInfo int32 = 2

	handshakeAckValue int32 = 1
)

// Telemetry frame byte offsets.
const (
	offPacketID = 0
	offSpeed    = 4
	offRPM      = 28
	offGear     = 32
	offThrottle = 36
	offBrake    = 40
	offSteer    = 44
	offABS      = 48
	offTC       = 52

	// ExtendedFrameSize is the shortest frame carrying the driver-input fields.
	ExtendedFrameSize = 56
)

// ErrMalformedPacket is returned when a datagram is too short to decode.
var ErrMalformedPacket = errors.New("malformed packet")

// Header is the fixed prefix of every inbound datagram.
type Header struct {
	Identifier  int32
	Version     int32
	OperationID Operation
}

// DecodeHeader reads the three header fields. Bytes past the header are ignored.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrMalformedPacket, HeaderSize, len(b))
	}
	return Header{
		Identifier:  int32(binary.LittleEndian.Uint32(b[0:4])),
		Version:     int32(binary.LittleEndian.Uint32(b[4:8])),
		OperationID: Operation(binary.LittleEndian.Uint32(b[8:12])),
	}, nil
}

// EncodeHeader is the inverse of DecodeHeader; consumers use it to build requests.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Identifier))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.Version))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.OperationID))
	return b
}

// EncodeHandshakeAck returns the 4-byte handshake reply.
func EncodeHandshakeAck() []byte {
	b := make([]byte, HandshakeAckSize)
	binary.LittleEndian.PutUint32(b, uint32(handshakeAckValue))
	return b
}

// EncodeTelemetryFrame lays a sample out in a zero-padded 64-byte frame.
func EncodeTelemetryFrame(s model.TelemetrySample) []byte {
	b := make([]byte, FrameSize)
	putInt32(b, offPacketID, PacketIDCarInfo)
	putFloat32(b, offSpeed, s.SpeedKmh)
	putFloat32(b, offRPM, s.RPM)
	putInt32(b, offGear, s.Gear)
	putFloat32(b, offThrottle, s.ThrottlePercent)
	putFloat32(b, offBrake, s.BrakePercent)
	putFloat32(b, offSteer, s.SteerAngleRadians)
	putFloat32(b, offABS, s.ABSPercent)
	putFloat32(b, offTC, s.TCPercent)
	return b
}

// PacketID returns the leading int32 of an outbound frame.
func PacketID(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: packet id needs 4 bytes, got %d", ErrMalformedPacket, len(b))
	}
	return getInt32(b, offPacketID), nil
}

// DecodeTelemetryFrame reads a car-info frame the way the consumer does:
// speed, rpm and gear are always present, the driver inputs only when the
// frame is at least ExtendedFrameSize bytes long.
func DecodeTelemetryFrame(b []byte) (model.TelemetrySample, error) {
	id, err := PacketID(b)
	if err != nil {
		return model.TelemetrySample{}, err
	}
	if id != PacketIDCarInfo {
		return model.TelemetrySample{}, fmt.Errorf("%w: packet id %d is not car info", ErrMalformedPacket, id)
	}
	if len(b) < offGear+4 {
		return model.TelemetrySample{}, fmt.Errorf("%w: frame needs %d bytes, got %d", ErrMalformedPacket, offGear+4, len(b))
	}

	s := model.TelemetrySample{
		SpeedKmh: getFloat32(b, offSpeed),
		RPM:      getFloat32(b, offRPM),
		Gear:     getInt32(b, offGear),
	}
	if len(b) >= ExtendedFrameSize {
		s.ThrottlePercent = getFloat32(b, offThrottle)
		s.BrakePercent = getFloat32(b, offBrake)
		s.SteerAngleRadians = getFloat32(b, offSteer)
		s.ABSPercent = getFloat32(b, offABS)
		s.TCPercent = getFloat32(b, offTC)
	}
	return s, nil
}

func putInt32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:off+4], uint32(v))
}

func putFloat32(b []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(v))
}

func getInt32(b []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(b[off : off+4]))
}

func getFloat32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}
