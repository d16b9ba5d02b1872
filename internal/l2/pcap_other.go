//go:build !linux

package l2

import (
	"fmt"
	"time"

	"github.com/google/gopacket/pcap"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

// pcapHandle adapts a libpcap live capture to the Handle contract. A short
// read timeout keeps Receive effectively non-blocking.
type pcapHandle struct {
	h      *pcap.Handle
	mac    eth.MAC
	closed bool
}

func openLive(iface string) (Handle, error) {
	h, err := pcap.OpenLive(iface, snapLen, true, time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrOpen, iface, err)
	}
	return &pcapHandle{h: h, mac: InterfaceMAC(iface)}, nil
}

func (p *pcapHandle) Send(frame []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if err := p.h.WritePacketData(frame); err != nil {
		return 0, err
	}
	return len(frame), nil
}

func (p *pcapHandle) Receive() ([]byte, error) {
	if p.closed {
		return nil, ErrClosed
	}
	data, _, err := p.h.ReadPacketData()
	if err != nil {
		if err == pcap.NextErrorTimeoutExpired {
			return nil, nil
		}
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (p *pcapHandle) LocalMAC() eth.MAC {
	return p.mac
}

func (p *pcapHandle) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.h.Close()
	return nil
}
