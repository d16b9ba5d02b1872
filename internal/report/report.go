// Package report renders the outcome of an injection session as JSON and
// as a PDF with a QR verification code tied to the report contents.
package report

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/common"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/session"
)

// SourceFile ties a replayed recording to its exact input bytes.
type SourceFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// SessionReport is the persisted outcome of one run.
type SessionReport struct {
	SessionID   string    `json:"sessionId"`
	GeneratedAt time.Time `json:"generatedAt"`

	Mode         string `json:"mode"`
	Interface    string `json:"interface"`
	SVID         string `json:"svId"`
	AppID        uint16 `json:"appId"`
	SampleRate   uint16 `json:"sampleRate"`
	DstMAC       string `json:"dstMac"`
	VLANID       uint16 `json:"vlanId"`
	VLANPriority uint8  `json:"vlanPriority"`

	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	DurationS     float64   `json:"durationSeconds"`
	PacketsSent   uint32    `json:"packetsSent"`
	PacketsFailed uint32    `json:"packetsFailed"`
	AvgRate       float64   `json:"avgRatePps"`
	GooseFrames   int64     `json:"gooseFrames"`

	StoppedByGoose  bool   `json:"stoppedByGoose"`
	GooseStopReason string `json:"gooseStopReason,omitempty"`

	Sources []SourceFile `json:"sources,omitempty"`
}

// FromSession assembles a report from a terminated controller. Replay
// inputs are hashed so the report pins the exact recording bytes.
func FromSession(c *session.Controller) (SessionReport, error) {
	cfg := c.Config()
	stats := c.Statistics()
	snap := c.Metrics().Snapshot()

	rep := SessionReport{
		SessionID:       c.ID().String(),
		GeneratedAt:     time.Now(),
		Mode:            cfg.Mode().String(),
		Interface:       cfg.Iface,
		SVID:            cfg.SVID,
		AppID:           cfg.AppID,
		SampleRate:      cfg.SampleRate,
		DstMAC:          cfg.DstMAC,
		VLANID:          cfg.VLANID,
		VLANPriority:    cfg.VLANPriority,
		StartTime:       stats.StartTime,
		EndTime:         stats.EndTime,
		DurationS:       snap.Duration.Seconds(),
		PacketsSent:     stats.PacketsSent,
		PacketsFailed:   stats.PacketsFailed,
		AvgRate:         snap.Rate(),
		GooseFrames:     snap.GooseFrames,
		StoppedByGoose:  stats.StoppedByGoose,
		GooseStopReason: stats.GooseStopReason,
	}
	for _, path := range []string{cfg.CfgFilePath, cfg.DatFilePath} {
		if path == "" {
			continue
		}
		sum, size, err := common.Sha256OfFile(path)
		if err != nil {
			return rep, fmt.Errorf("hash %s: %w", path, err)
		}
		rep.Sources = append(rep.Sources, SourceFile{Path: path, SHA256: sum, Size: size})
	}
	return rep, nil
}

// VerificationHash is the digest the QR code carries: SHA-256 over the
// canonical JSON encoding.
func (r SessionReport) VerificationHash() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(b)), nil
}

func SaveSessionJSON(rep SessionReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSessionJSON(path string) (SessionReport, error) {
	var rep SessionReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
