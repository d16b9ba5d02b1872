package l2

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/pcapgo"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

var testMAC = eth.MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

func TestLoopbackSendReceive(t *testing.T) {
	lb := NewLoopback(testMAC)
	if lb.LocalMAC() != testMAC {
		t.Fatalf("LocalMAC = %v", lb.LocalMAC())
	}

	frame, err := lb.Receive()
	if err != nil || frame != nil {
		t.Fatalf("empty receive = (%v, %v)", frame, err)
	}

	n, err := lb.Send([]byte{1, 2, 3})
	if err != nil || n != 3 {
		t.Fatalf("Send = (%d, %v)", n, err)
	}
	if lb.SentCount() != 1 {
		t.Fatalf("SentCount = %d", lb.SentCount())
	}

	lb.Inject([]byte{9, 8})
	frame, err = lb.Receive()
	if err != nil || len(frame) != 2 || frame[0] != 9 {
		t.Fatalf("Receive = (%v, %v)", frame, err)
	}
	frame, err = lb.Receive()
	if err != nil || frame != nil {
		t.Fatalf("drained receive = (%v, %v)", frame, err)
	}
}

func TestLoopbackFailSends(t *testing.T) {
	lb := NewLoopback(testMAC)
	lb.FailSends = 2
	for i := 0; i < 2; i++ {
		if n, err := lb.Send([]byte{1}); err != nil || n != 0 {
			t.Fatalf("failed send = (%d, %v)", n, err)
		}
	}
	if n, _ := lb.Send([]byte{1}); n != 1 {
		t.Fatalf("recovered send = %d", n)
	}
	if lb.SentCount() != 1 {
		t.Fatalf("SentCount = %d", lb.SentCount())
	}
}

func TestLoopbackClosed(t *testing.T) {
	lb := NewLoopback(testMAC)
	if err := lb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := lb.Send([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
	if _, err := lb.Receive(); !errors.Is(err, ErrClosed) {
		t.Fatalf("receive after close: %v", err)
	}
}

func TestRecorderWritesPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	rec, err := NewRecorder(path, testMAC)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if rec.LocalMAC() != testMAC {
		t.Fatalf("LocalMAC = %v", rec.LocalMAC())
	}

	frames := [][]byte{
		append(make([]byte, 12), 0x88, 0xBA, 0x40, 0x00),
		append(make([]byte, 12), 0x88, 0xB8, 0x00, 0x01),
	}
	for _, f := range frames {
		if n, err := rec.Send(f); err != nil || n != len(f) {
			t.Fatalf("Send = (%d, %v)", n, err)
		}
	}
	if frame, err := rec.Receive(); err != nil || frame != nil {
		t.Fatalf("recorder receive = (%v, %v)", frame, err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := rec.Send(frames[0]); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	if err != nil {
		t.Fatalf("pcap reader: %v", err)
	}
	var got [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		got = append(got, data)
	}
	if len(got) != len(frames) {
		t.Fatalf("capture holds %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if string(got[i]) != string(frames[i]) {
			t.Fatalf("frame %d mismatch", i)
		}
	}
}

func TestOpenMissingInterface(t *testing.T) {
	if _, err := Open("definitely-not-a-real-iface-0"); err == nil {
		t.Fatal("open of missing interface succeeded")
	}
}
