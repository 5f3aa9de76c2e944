// Package frame decodes the raw Modbus RTU responses relayed by the DTU
// gateway. Only the two response shapes the tank sensors produce are
// recognised; anything else on the bus is rejected.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind tags which sensor a frame came from.
type Kind int

const (
	KindUnknown Kind = iota
	KindECTemp
	KindWaterLevel
)

func (k Kind) String() string {
	switch k {
	case KindECTemp:
		return "ec_temp"
	case KindWaterLevel:
		return "water_level"
	default:
		return "unknown"
	}
}

// Bus addresses and layout of the known response shapes.
const (
	AddrECTemp     byte = 0x03
	AddrWaterLevel byte = 0x0D
	FuncReadHold   byte = 0x03

	ecTempByteCount     byte = 0x08
	waterLevelByteCount byte = 0x02

	minFrameLen      = 5
	ecTempMinLen     = 13
	waterLevelMinLen = 7

	headerLen = 3
)

var (
	// ErrRejected is the parent of every decode failure.
	ErrRejected = errors.New("frame rejected")

	ErrTooShort     = fmt.Errorf("%w: too short", ErrRejected)
	ErrUnknownShape = fmt.Errorf("%w: unknown shape", ErrRejected)
)

// Frame is one decoded field-bus response.
type Frame struct {
	Kind         Kind
	Address      byte
	FunctionCode byte
	ByteCount    byte
	Payload      []byte

	ECMicroSiemens float64 // KindECTemp
	WaterTempC     float64 // KindECTemp
	WaterLevelMm   float64 // KindWaterLevel
}

// Decode parses b into a Frame. The CRC trailer is not checked.
func Decode(b []byte) (Frame, error) {
	if len(b) < minFrameLen {
		return Frame{}, ErrTooShort
	}

	f := Frame{
		Address:      b[0],
		FunctionCode: b[1],
		ByteCount:    b[2],
	}

	switch {
	case f.Address == AddrECTemp && f.FunctionCode == FuncReadHold &&
		f.ByteCount == ecTempByteCount && len(b) >= ecTempMinLen:
		f.Kind = KindECTemp
		f.Payload = payload(b, f.ByteCount)
		f.ECMicroSiemens = float64(binary.BigEndian.Uint32(b[3:7])) / 100
		f.WaterTempC = float64(binary.BigEndian.Uint16(b[7:9])) / 10

	case f.Address == AddrWaterLevel && f.FunctionCode == FuncReadHold &&
		f.ByteCount == waterLevelByteCount && len(b) >= waterLevelMinLen:
		f.Kind = KindWaterLevel
		f.Payload = payload(b, f.ByteCount)
		f.WaterLevelMm = float64(binary.BigEndian.Uint16(b[3:5]))

	default:
		return Frame{}, fmt.Errorf("%w (addr=0x%02X func=0x%02X count=0x%02X len=%d)",
			ErrUnknownShape, f.Address, f.FunctionCode, f.ByteCount, len(b))
	}

	return f, nil
}

func payload(b []byte, n byte) []byte {
	out := make([]byte, n)
	copy(out, b[headerLen:headerLen+int(n)])
	return out
}
