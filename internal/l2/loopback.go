package l2

import (
	"sync"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

// Loopback is an in-memory Handle. Sent frames are retained for
// inspection; Inject queues frames for Receive. Safe for concurrent use.
type Loopback struct {
	mu     sync.Mutex
	mac    eth.MAC
	sent   [][]byte
	rxq    [][]byte
	closed bool

	// FailSends makes the next n Send calls report a zero count.
	FailSends int
}

// NewLoopback returns a loopback handle reporting mac as its address.
func NewLoopback(mac eth.MAC) *Loopback {
	return &Loopback{mac: mac}
}

func (l *Loopback) Send(frame []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	if l.FailSends > 0 {
		l.FailSends--
		return 0, nil
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.sent = append(l.sent, cp)
	return len(frame), nil
}

func (l *Loopback) Receive() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if len(l.rxq) == 0 {
		return nil, nil
	}
	frame := l.rxq[0]
	l.rxq = l.rxq[1:]
	return frame, nil
}

func (l *Loopback) LocalMAC() eth.MAC {
	return l.mac
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Inject queues a frame for the next Receive.
func (l *Loopback) Inject(frame []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.rxq = append(l.rxq, cp)
}

// Sent returns copies of all frames transmitted so far.
func (l *Loopback) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.sent))
	for i, f := range l.sent {
		cp := make([]byte, len(f))
		copy(cp, f)
		out[i] = cp
	}
	return out
}

// SentCount reports how many frames were transmitted.
func (l *Loopback) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}
