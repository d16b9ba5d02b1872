// Package resample converts recorded waveforms between sample rates using
// boundary-clamped linear interpolation.
package resample

import (
	"errors"
	"math"
)

var ErrRate = errors.New("resample: rates must be positive")

// rateEpsilon is the tolerance inside which input and output rates are
// treated as equal and channels pass through unchanged.
const rateEpsilon = 0.1

// Interp evaluates the channel at fractional index t with clamping at both
// boundaries: t <= 0 yields the first sample, t >= n-1 the last.
func Interp(channel []float64, t float64) float64 {
	n := len(channel)
	if n == 0 {
		return 0
	}
	if t <= 0 {
		return channel[0]
	}
	if t >= float64(n-1) {
		return channel[n-1]
	}
	i := int(math.Floor(t))
	frac := t - float64(i)
	return channel[i]*(1-frac) + channel[i+1]*frac
}

// Channel resamples one waveform from inRate to outRate. The output length
// is ceil(len(in) * outRate / inRate). When the rates agree within 0.1 Hz
// the input is returned unchanged.
func Channel(in []float64, inRate, outRate float64) ([]float64, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, ErrRate
	}
	if math.Abs(inRate-outRate) <= rateEpsilon {
		return in, nil
	}
	if len(in) == 0 {
		return nil, nil
	}
	outLen := int(math.Ceil(float64(len(in)) * outRate / inRate))
	out := make([]float64, outLen)
	step := inRate / outRate
	for j := range out {
		out[j] = Interp(in, float64(j)*step)
	}
	return out, nil
}

// Table resamples a set of channels, preserving order. Every output channel
// has the same length.
func Table(channels [][]float64, inRate, outRate float64) ([][]float64, error) {
	out := make([][]float64, len(channels))
	for i, ch := range channels {
		r, err := Channel(ch, inRate, outRate)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
