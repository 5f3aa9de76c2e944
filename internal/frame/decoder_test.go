package frame

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// ecTempFrame builds a 13-byte EC/temperature response with a dummy CRC.
func ecTempFrame(ecRaw uint32, tempRaw uint16) []byte {
	b := []byte{AddrECTemp, FuncReadHold, 0x08, 0, 0, 0, 0, 0, 0, 0, 0, 0xAA, 0xBB}
	binary.BigEndian.PutUint32(b[3:7], ecRaw)
	binary.BigEndian.PutUint16(b[7:9], tempRaw)
	return b
}

func waterLevelFrame(raw uint16) []byte {
	b := []byte{AddrWaterLevel, FuncReadHold, 0x02, 0, 0, 0xAA, 0xBB}
	binary.BigEndian.PutUint16(b[3:5], raw)
	return b
}

func TestDecode_ECTemp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ecRaw   uint32
		tempRaw uint16
	}{
		{0, 0},
		{220000, 250},
		{1, 1},
		{123456, 999},
		{math.MaxUint32, math.MaxUint16},
	}

	for _, tc := range cases {
		f, err := Decode(ecTempFrame(tc.ecRaw, tc.tempRaw))
		if err != nil {
			t.Fatalf("Decode(ec=%d,temp=%d): %v", tc.ecRaw, tc.tempRaw, err)
		}
		if f.Kind != KindECTemp {
			t.Fatalf("kind=%v, want ec_temp", f.Kind)
		}
		if want := float64(tc.ecRaw) / 100; math.Abs(f.ECMicroSiemens-want) > 1e-9 {
			t.Errorf("EC=%v, want %v", f.ECMicroSiemens, want)
		}
		if want := float64(tc.tempRaw) / 10; math.Abs(f.WaterTempC-want) > 1e-9 {
			t.Errorf("temp=%v, want %v", f.WaterTempC, want)
		}
		if len(f.Payload) != 8 {
			t.Errorf("payload len=%d, want 8", len(f.Payload))
		}
	}
}

func TestDecode_WaterLevel(t *testing.T) {
	t.Parallel()

	f, err := Decode(waterLevelFrame(150))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindWaterLevel {
		t.Fatalf("kind=%v, want water_level", f.Kind)
	}
	if f.WaterLevelMm != 150 {
		t.Fatalf("level=%v, want 150", f.WaterLevelMm)
	}
}

func TestDecode_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"nil", nil, ErrTooShort},
		{"four bytes", []byte{0x03, 0x03, 0x08, 0x00}, ErrTooShort},
		{"ec frame truncated", ecTempFrame(1, 1)[:12], ErrUnknownShape},
		{"wl frame truncated", waterLevelFrame(1)[:6], ErrUnknownShape},
		{"wrong address", append([]byte{0x05}, ecTempFrame(1, 1)[1:]...), ErrUnknownShape},
		{"wrong function", []byte{0x0D, 0x04, 0x02, 0, 1, 0, 0}, ErrUnknownShape},
		{"ec address with wl byte count", []byte{0x03, 0x03, 0x02, 0, 1, 0, 0}, ErrUnknownShape},
		{"json relay status", []byte(`{"relay1_output":true}`), ErrUnknownShape},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f, err := Decode(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
			if !errors.Is(err, ErrRejected) {
				t.Fatalf("err=%v does not wrap ErrRejected", err)
			}
			if f.Kind != KindUnknown {
				t.Fatalf("kind=%v on rejection", f.Kind)
			}
		})
	}
}

func TestDecode_NeverPanicsOnShortInput(t *testing.T) {
	t.Parallel()

	for n := 0; n < 16; n++ {
		for _, addr := range []byte{AddrECTemp, AddrWaterLevel, 0xFF} {
			b := make([]byte, n)
			if n > 0 {
				b[0] = addr
			}
			if n > 1 {
				b[1] = FuncReadHold
			}
			if n > 2 {
				b[2] = 0x08
				if addr == AddrWaterLevel {
					b[2] = 0x02
				}
			}
			_, _ = Decode(b)
		}
	}
}
