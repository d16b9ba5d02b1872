package l2

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

// Recorder writes transmitted frames to a pcap file instead of an
// interface, so a session can be captured without elevated privileges.
// Receive never yields a frame.
type Recorder struct {
	f      *os.File
	w      *pcapgo.Writer
	mac    eth.MAC
	closed bool
}

// NewRecorder creates path and writes the pcap file header. The src
// address is reported as the local MAC since no interface is involved.
func NewRecorder(path string, src eth.MAC) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: pcap header: %v", ErrOpen, err)
	}
	return &Recorder{f: f, w: w, mac: src}, nil
}

func (r *Recorder) Send(frame []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := r.w.WritePacket(ci, frame); err != nil {
		return 0, err
	}
	return len(frame), nil
}

func (r *Recorder) Receive() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	return nil, nil
}

func (r *Recorder) LocalMAC() eth.MAC {
	return r.mac
}

func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
