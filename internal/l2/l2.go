// Package l2 provides raw link-layer send/receive handles scoped to one
// named interface. On Linux the handle is an AF_PACKET socket; elsewhere it
// is a libpcap capture. A pcap-file recorder and an in-memory loopback
// cover offline and test use.
package l2

import (
	"errors"
	"net"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

var (
	ErrOpen   = errors.New("l2: open failed")
	ErrClosed = errors.New("l2: handle closed")
)

// snapLen bounds received frames. SV and GOOSE frames are far below the
// interface MTU.
const snapLen = 2048

// Handle is a raw L2 endpoint. Receive is non-blocking: a nil slice with a
// nil error means no frame was ready. Send returns the transmitted byte
// count; the caller counts an error or a count of zero or less as a failed
// send and carries on.
type Handle interface {
	Send(frame []byte) (int, error)
	Receive() ([]byte, error)
	LocalMAC() eth.MAC
	Close() error
}

// Open acquires a promiscuous, non-blocking handle on the named interface.
func Open(iface string) (Handle, error) {
	return openLive(iface)
}

// InterfaceMAC resolves the link-layer address of a named interface. The
// all-zero address is returned when the lookup fails or the interface
// carries no hardware address.
func InterfaceMAC(iface string) eth.MAC {
	var mac eth.MAC
	ifi, err := net.InterfaceByName(iface)
	if err != nil || len(ifi.HardwareAddr) != 6 {
		return mac
	}
	copy(mac[:], ifi.HardwareAddr)
	return mac
}
