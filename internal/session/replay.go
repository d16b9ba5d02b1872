package session

import (
	"fmt"
	"math"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/comtrade"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/resample"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/sv"
)

// replayStream is a fully resampled recording ready for transmission: one
// int32 series per dataset channel, all of equal length. Channels with no
// mapping stay zero.
type replayStream struct {
	samples    [sv.NumChannels][]int32
	numSamples int
	sourceRate float64
	recording  *comtrade.Recording
}

// loadReplayStream parses the recording, resolves the channel mapping and
// resamples every mapped series to the transmit rate.
func loadReplayStream(cfg *Config) (*replayStream, error) {
	datPath := cfg.DatFilePath
	if datPath == "" {
		datPath = comtrade.DerivedDatPath(cfg.CfgFilePath)
	}
	rec, err := comtrade.Load(cfg.CfgFilePath, datPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFile, err)
	}
	st := &replayStream{
		sourceRate: rec.Config.SampleRateAt(0),
		recording:  rec,
	}
	if st.sourceRate <= 0 {
		return nil, fmt.Errorf("%w: recording declares no sample rate", ErrFile)
	}

	outRate := float64(cfg.SampleRate)
	for name, idx := range cfg.ChannelMapping {
		ch, ok := rec.Config.AnalogChannelByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q not in recording", ErrChannel, name)
		}
		series := rec.AnalogSeries(ch.Index)
		out, err := resample.Channel(series, st.sourceRate, outRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		st.samples[idx] = quantize(out)
		if len(out) > st.numSamples {
			st.numSamples = len(out)
		}
	}
	if st.numSamples == 0 {
		// No mapping given: carry the recording's length so an all-zero
		// stream still bounds the run.
		out, err := resample.Channel(make([]float64, rec.NumSamples()), st.sourceRate, outRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		st.numSamples = len(out)
	}
	for i := range st.samples {
		if len(st.samples[i]) < st.numSamples {
			padded := make([]int32, st.numSamples)
			copy(padded, st.samples[i])
			st.samples[i] = padded
		}
	}
	return st, nil
}

// at returns the dataset row for one sample index.
func (st *replayStream) at(idx int) [sv.NumChannels]int32 {
	var row [sv.NumChannels]int32
	for i := range st.samples {
		row[i] = st.samples[i][idx]
	}
	return row
}

func quantize(in []float64) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		r := math.Round(v)
		switch {
		case r > math.MaxInt32:
			out[i] = math.MaxInt32
		case r < math.MinInt32:
			out[i] = math.MinInt32
		default:
			out[i] = int32(r)
		}
	}
	return out
}
