package sv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(0x4000, "TestSV01", 4800)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestEncodeHeader(t *testing.T) {
	b := newTestBuilder(t)
	pdu, err := b.Encode(0, [NumChannels]int32{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := binary.BigEndian.Uint16(pdu[0:2]); got != 0x88BA {
		t.Fatalf("EtherType = 0x%04X", got)
	}
	if got := binary.BigEndian.Uint16(pdu[2:4]); got != 0x4000 {
		t.Fatalf("APPID = 0x%04X", got)
	}
	if got := binary.BigEndian.Uint16(pdu[4:6]); int(got) != len(pdu) {
		t.Fatalf("LEN = %d, payload length %d", got, len(pdu))
	}
	if !bytes.Equal(pdu[6:10], []byte{0, 0, 0, 0}) {
		t.Fatalf("reserved words = % X", pdu[6:10])
	}
	if pdu[10] != 0x60 {
		t.Fatalf("SAVPDU tag = 0x%02X", pdu[10])
	}
}

func TestEncodeASDUFields(t *testing.T) {
	b := newTestBuilder(t)
	samples := [NumChannels]int32{141, -141, 0, 0, 98286, -98286, 0, 0}
	pdu, err := b.Encode(1234, samples)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// svID="TestSV01": asdu=93, seqASDU=95, savPDU=100, LEN=112.
	if len(pdu) != 112 {
		t.Fatalf("payload length = %d, want 112", len(pdu))
	}
	want := []byte{0x60, 100, 0x80, 0x01, 0x01, 0xA2, 95, 0x30, 93}
	if !bytes.Equal(pdu[10:19], want) {
		t.Fatalf("SAVPDU framing = % X, want % X", pdu[10:19], want)
	}

	asdu := pdu[19:]
	if asdu[0] != 0x80 || asdu[1] != 8 || string(asdu[2:10]) != "TestSV01" {
		t.Fatalf("svID TLV = % X", asdu[:10])
	}
	off := 10
	if asdu[off] != 0x82 || asdu[off+1] != 2 {
		t.Fatalf("smpCnt TLV head = % X", asdu[off:off+2])
	}
	if got := binary.BigEndian.Uint16(asdu[off+2 : off+4]); got != 1234 {
		t.Fatalf("smpCnt = %d", got)
	}
	off += 4
	if asdu[off] != 0x83 || asdu[off+1] != 4 {
		t.Fatalf("confRev TLV head = % X", asdu[off:off+2])
	}
	if got := binary.BigEndian.Uint32(asdu[off+2 : off+6]); got != 1 {
		t.Fatalf("confRev = %d", got)
	}
	off += 6
	if asdu[off] != 0x85 || asdu[off+1] != 1 || asdu[off+2] != 0x01 {
		t.Fatalf("smpSynch TLV = % X", asdu[off:off+3])
	}
	off += 3
	if asdu[off] != 0x86 || asdu[off+1] != 2 {
		t.Fatalf("smpRate TLV head = % X", asdu[off:off+2])
	}
	if got := binary.BigEndian.Uint16(asdu[off+2 : off+4]); got != 4800 {
		t.Fatalf("smpRate = %d", got)
	}
	off += 4
	if asdu[off] != 0x87 || asdu[off+1] != DatasetLen {
		t.Fatalf("seqData TLV head = % X", asdu[off:off+2])
	}
	data := asdu[off+2:]
	if len(data) != DatasetLen {
		t.Fatalf("dataset length = %d", len(data))
	}
	for i := 0; i < NumChannels; i++ {
		v := int32(binary.BigEndian.Uint32(data[i*8 : i*8+4]))
		q := binary.BigEndian.Uint32(data[i*8+4 : i*8+8])
		if v != samples[i] {
			t.Fatalf("channel %d value = %d, want %d", i, v, samples[i])
		}
		if q != 0 {
			t.Fatalf("channel %d quality = %d", i, q)
		}
	}
}

func TestEncodeQualityOverride(t *testing.T) {
	b := newTestBuilder(t)
	b.Qualities = []uint32{0, 1, 2, 3, 4, 5, 6, 0x2000}
	pdu, err := b.Encode(0, [NumChannels]int32{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := pdu[len(pdu)-DatasetLen:]
	for i, want := range b.Qualities {
		if got := binary.BigEndian.Uint32(data[i*8+4 : i*8+8]); got != want {
			t.Fatalf("channel %d quality = %d, want %d", i, got, want)
		}
	}

	b.Qualities = []uint32{1, 2, 3}
	if _, err := b.Encode(0, [NumChannels]int32{}); !errors.Is(err, ErrQualitySize) {
		t.Fatalf("short quality slice accepted: %v", err)
	}
}

func TestEncodeBufferReuse(t *testing.T) {
	b := newTestBuilder(t)
	first, err := b.Encode(0, [NumChannels]int32{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := b.Encode(1, [NumChannels]int32{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if &first[0] != &second[0] {
		t.Fatal("encode allocated a fresh buffer per frame")
	}
}

func TestNewBuilderValidation(t *testing.T) {
	long := make([]byte, 128)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := NewBuilder(0x4000, string(long), 4800); !errors.Is(err, ErrSVIDLength) {
		t.Fatalf("128-byte svID accepted: %v", err)
	}
	if _, err := NewBuilder(0x4000, "SV", 0); !errors.Is(err, ErrSampleRate) {
		t.Fatalf("zero sample rate accepted: %v", err)
	}
}

func TestPhasorSamples(t *testing.T) {
	b := newTestBuilder(t)
	var phasors [NumChannels]Phasor
	phasors[0] = Phasor{Magnitude: 100, PhaseDeg: 0}

	cases := []struct {
		smpCnt uint16
		want   int32
	}{
		{0, 141},  // cos(0) = 1
		{10, 100}, // pi/4
		{20, 0},   // pi/2
		{40, -141},
	}
	for _, tc := range cases {
		got := b.PhasorSamples(phasors, tc.smpCnt)
		if got[0] != tc.want {
			t.Fatalf("smpCnt=%d: channel 0 = %d, want %d", tc.smpCnt, got[0], tc.want)
		}
		for i := 1; i < NumChannels; i++ {
			if got[i] != 0 {
				t.Fatalf("smpCnt=%d: idle channel %d = %d", tc.smpCnt, i, got[i])
			}
		}
	}
}

func TestPhasorSamplesClamp(t *testing.T) {
	b := newTestBuilder(t)
	var phasors [NumChannels]Phasor
	phasors[0] = Phasor{Magnitude: 4e9, PhaseDeg: 0}
	phasors[1] = Phasor{Magnitude: 4e9, PhaseDeg: 180}
	got := b.PhasorSamples(phasors, 0)
	if got[0] != math.MaxInt32 {
		t.Fatalf("positive overflow = %d", got[0])
	}
	if got[1] != math.MinInt32 {
		t.Fatalf("negative overflow = %d", got[1])
	}
}

func TestNextSmpCntWrap(t *testing.T) {
	b := newTestBuilder(t)
	if got := b.NextSmpCnt(0); got != 1 {
		t.Fatalf("NextSmpCnt(0) = %d", got)
	}
	if got := b.NextSmpCnt(4798); got != 4799 {
		t.Fatalf("NextSmpCnt(4798) = %d", got)
	}
	if got := b.NextSmpCnt(4799); got != 0 {
		t.Fatalf("NextSmpCnt(4799) = %d", got)
	}
}
