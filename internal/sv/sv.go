// Package sv encodes IEC 61850-9-2 LE Sampled Value PDUs for an
// eight-channel INT32 dataset (IA, IB, IC, IN, VA, VB, VC, VN).
package sv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/ber"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

// NumChannels is the fixed dataset width.
const NumChannels = 8

// DatasetLen is the encoded seqData length: eight channels of
// [INT32 value | quality], four bytes each.
const DatasetLen = NumChannels * 8

// LineFreqHz is the nominal line frequency used for phasor synthesis.
const LineFreqHz = 60.0

const sqrt2 = 1.4142135623730951

var (
	ErrSVIDLength  = errors.New("svID too long")
	ErrSampleRate  = errors.New("sample rate must be positive")
	ErrQualitySize = errors.New("quality override must cover eight channels")
)

// Phasor is a magnitude and phase-angle pair in engineering units and degrees.
type Phasor struct {
	Magnitude float64
	PhaseDeg  float64
}

// Builder produces SV PDUs for one stream. The internal buffer is reused
// across Encode calls, so a returned slice is only valid until the next call.
type Builder struct {
	AppID      uint16
	SVID       string
	SampleRate uint16
	ConfRev    uint32
	SmpSynch   byte

	// Qualities optionally overrides the per-channel quality words.
	// When nil every channel carries quality zero.
	Qualities []uint32

	buf []byte
}

// NewBuilder returns a Builder with the 9-2 LE defaults (confRev 1,
// smpSynch asserted).
func NewBuilder(appID uint16, svID string, sampleRate uint16) (*Builder, error) {
	if len(svID) > 127 {
		return nil, fmt.Errorf("%w: %d bytes", ErrSVIDLength, len(svID))
	}
	if sampleRate == 0 {
		return nil, ErrSampleRate
	}
	return &Builder{
		AppID:      appID,
		SVID:       svID,
		SampleRate: sampleRate,
		ConfRev:    1,
		SmpSynch:   0x01,
		buf:        make([]byte, 0, 160),
	}, nil
}

// PhasorSamples synthesises the instantaneous dataset values for smpCnt:
// round(mag * sqrt2 * cos(2*pi*60*smpCnt/rate + phase)), clamped to int32.
func (b *Builder) PhasorSamples(phasors [NumChannels]Phasor, smpCnt uint16) [NumChannels]int32 {
	var out [NumChannels]int32
	t := float64(smpCnt) / float64(b.SampleRate)
	omega := 2 * math.Pi * LineFreqHz
	for i, p := range phasors {
		rad := p.PhaseDeg * math.Pi / 180
		v := math.Round(p.Magnitude * sqrt2 * math.Cos(omega*t+rad))
		out[i] = clampInt32(v)
	}
	return out
}

func clampInt32(v float64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}

// Encode builds the full SV payload for one frame, starting at the 0x88BA
// EtherType and ending with the SAVPDU. The returned slice aliases the
// builder's internal buffer.
func (b *Builder) Encode(smpCnt uint16, samples [NumChannels]int32) ([]byte, error) {
	if b.Qualities != nil && len(b.Qualities) != NumChannels {
		return nil, fmt.Errorf("%w: got %d", ErrQualitySize, len(b.Qualities))
	}

	asduLen := 2 + len(b.SVID) + // svID TLV
		4 + // smpCnt TLV
		6 + // confRev TLV
		3 + // smpSynch TLV
		4 + // smpRate TLV
		2 + DatasetLen // seqData TLV
	seqASDULen := 1 + ber.LengthSize(asduLen) + asduLen
	savPDULen := 3 + 1 + ber.LengthSize(seqASDULen) + seqASDULen
	total := 10 + 1 + ber.LengthSize(savPDULen) + savPDULen

	buf := b.buf[:0]
	buf = binary.BigEndian.AppendUint16(buf, eth.EtherTypeSV)
	buf = binary.BigEndian.AppendUint16(buf, b.AppID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(total))
	buf = append(buf, 0x00, 0x00, 0x00, 0x00)

	buf = append(buf, 0x60)
	buf = ber.AppendLength(buf, savPDULen)

	buf = append(buf, 0x80, 0x01, 0x01) // noASDU

	buf = append(buf, 0xA2)
	buf = ber.AppendLength(buf, seqASDULen)

	buf = append(buf, 0x30)
	buf = ber.AppendLength(buf, asduLen)

	buf = ber.AppendTLV(buf, 0x80, []byte(b.SVID))
	buf = ber.AppendUint16TLV(buf, 0x82, smpCnt)
	buf = ber.AppendUint32TLV(buf, 0x83, b.ConfRev)
	buf = append(buf, 0x85, 0x01, b.SmpSynch)
	buf = ber.AppendUint16TLV(buf, 0x86, b.SampleRate)

	buf = append(buf, 0x87, DatasetLen)
	for i := 0; i < NumChannels; i++ {
		buf = binary.BigEndian.AppendUint32(buf, uint32(samples[i]))
		var q uint32
		if b.Qualities != nil {
			q = b.Qualities[i]
		}
		buf = binary.BigEndian.AppendUint32(buf, q)
	}

	b.buf = buf
	return buf, nil
}

// NextSmpCnt advances a sample counter by one frame, wrapping at the
// sample rate.
func (b *Builder) NextSmpCnt(smpCnt uint16) uint16 {
	smpCnt++
	if smpCnt >= b.SampleRate {
		smpCnt = 0
	}
	return smpCnt
}
