// Package session owns the injection run: configuration validation, the
// COMTRADE replay stream, the GOOSE listener and the periodic transmit
// loop, plus statistics and cooperative stop.
package session

import (
	"errors"
	"fmt"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/sv"
)

// Error kinds surfaced by Configure and Run. Everything is wrapped around
// one of these sentinels so callers can classify without string matching.
var (
	ErrConfig    = errors.New("session: invalid configuration")
	ErrFile      = errors.New("session: recording file error")
	ErrChannel   = errors.New("session: unknown recording channel")
	ErrTransport = errors.New("session: transport error")
	ErrState     = errors.New("session: invalid state")
)

// Mode selects the sample source.
type Mode int

const (
	// ModePhasor synthesises sinusoids from the configured phasor set.
	ModePhasor Mode = iota
	// ModeReplay streams a resampled COMTRADE recording.
	ModeReplay
)

func (m Mode) String() string {
	if m == ModeReplay {
		return "replay"
	}
	return "phasor"
}

// PhasorSpec is one channel's magnitude/angle pair as it appears in a
// session file.
type PhasorSpec struct {
	Magnitude float64 `yaml:"magnitude"`
	PhaseDeg  float64 `yaml:"phase_deg"`
}

// Config describes one session. All fields are fixed at Configure time.
type Config struct {
	Iface  string `yaml:"iface"`
	DstMAC string `yaml:"dst_mac"`
	SrcMAC string `yaml:"src_mac"`

	VLANID       uint16 `yaml:"vlan_id"`
	VLANPriority uint8  `yaml:"vlan_priority"`

	AppID      uint16 `yaml:"app_id"`
	SVID       string `yaml:"sv_id"`
	SampleRate uint16 `yaml:"sample_rate"`

	StopGooseRef          string `yaml:"stop_goose_ref"`
	EnableGooseMonitoring bool   `yaml:"enable_goose_monitoring"`

	VerboseOutput    bool   `yaml:"verbose_output"`
	ProgressInterval uint32 `yaml:"progress_interval"`

	// Phasor mode: channel order IA, IB, IC, IN, VA, VB, VC, VN.
	Phasors []PhasorSpec `yaml:"phasors"`

	// Replay mode.
	CfgFilePath    string         `yaml:"cfg_file"`
	DatFilePath    string         `yaml:"dat_file"`
	ChannelMapping map[string]int `yaml:"channel_mapping"`
	LoopPlayback   bool           `yaml:"loop_playback"`

	// Reserved replay trim points, parsed but not applied.
	StartTimeOffset float64 `yaml:"start_time_offset"`
	EndTimeOffset   float64 `yaml:"end_time_offset"`
}

// Mode derives the sample source from the configuration: a recording path
// selects replay.
func (c *Config) Mode() Mode {
	if c.CfgFilePath != "" {
		return ModeReplay
	}
	return ModePhasor
}

// ApplyDefaults fills the fields a minimal session file may omit.
func (c *Config) ApplyDefaults() {
	if c.DstMAC == "" {
		c.DstMAC = "01:0C:CD:01:00:00"
	}
	if c.AppID == 0 {
		c.AppID = 0x4000
	}
	if c.SVID == "" {
		c.SVID = "TestSV01"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 4800
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = 1000
	}
}

// DefaultPhasors is the balanced three-phase set used when a phasor
// session gives no channels: 100 A currents and 69.5 kV voltages with
// +/-120 degree shifts, neutrals at zero.
func DefaultPhasors() [sv.NumChannels]sv.Phasor {
	return [sv.NumChannels]sv.Phasor{
		{Magnitude: 100, PhaseDeg: 0},
		{Magnitude: 100, PhaseDeg: -120},
		{Magnitude: 100, PhaseDeg: 120},
		{},
		{Magnitude: 69500, PhaseDeg: 0},
		{Magnitude: 69500, PhaseDeg: -120},
		{Magnitude: 69500, PhaseDeg: 120},
		{},
	}
}

// validate checks everything that can be checked without touching the
// filesystem or the network, returning ErrConfig-wrapped failures.
func (c *Config) validate() (dst, src eth.MAC, vlan eth.VLAN, err error) {
	if c.Iface == "" {
		return dst, src, vlan, fmt.Errorf("%w: interface name required", ErrConfig)
	}
	if c.SampleRate == 0 {
		return dst, src, vlan, fmt.Errorf("%w: sample rate must be positive", ErrConfig)
	}
	if len(c.SVID) > 127 {
		return dst, src, vlan, fmt.Errorf("%w: svID longer than 127 bytes", ErrConfig)
	}
	dst, err = eth.ParseMAC(c.DstMAC)
	if err != nil {
		return dst, src, vlan, fmt.Errorf("%w: destination %v", ErrConfig, err)
	}
	if c.SrcMAC != "" {
		src, err = eth.ParseMAC(c.SrcMAC)
		if err != nil {
			return dst, src, vlan, fmt.Errorf("%w: source %v", ErrConfig, err)
		}
	}
	vlan = eth.VLAN{Priority: c.VLANPriority, ID: c.VLANID}
	if err = vlan.Validate(); err != nil {
		return dst, src, vlan, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(c.Phasors) != 0 && len(c.Phasors) != sv.NumChannels {
		return dst, src, vlan, fmt.Errorf("%w: phasor set needs %d channels, got %d",
			ErrConfig, sv.NumChannels, len(c.Phasors))
	}
	for name, idx := range c.ChannelMapping {
		if idx < 0 || idx >= sv.NumChannels {
			return dst, src, vlan, fmt.Errorf("%w: mapping %q to channel %d out of range",
				ErrConfig, name, idx)
		}
	}
	return dst, src, vlan, nil
}

// phasorSet resolves the configured phasors, falling back to the balanced
// default set.
func (c *Config) phasorSet() [sv.NumChannels]sv.Phasor {
	if len(c.Phasors) != sv.NumChannels {
		return DefaultPhasors()
	}
	var out [sv.NumChannels]sv.Phasor
	for i, p := range c.Phasors {
		out[i] = sv.Phasor{Magnitude: p.Magnitude, PhaseDeg: p.PhaseDeg}
	}
	return out
}
