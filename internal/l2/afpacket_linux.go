//go:build linux

package l2

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

const (
	rcvBufSize = 1 << 20
	sndBufSize = 2 << 20
	sendPrio   = 7
)

// afPacket is an AF_PACKET SOCK_RAW socket bound to one interface, with
// promiscuous membership and non-blocking reads.
type afPacket struct {
	fd      int
	ifindex int
	mac     eth.MAC
	rbuf    []byte
	closed  bool
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

func openLive(iface string) (Handle, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("%w: interface %q: %v", ErrOpen, iface, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %v", ErrOpen, err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: bind %q: %v", ErrOpen, iface, err)
	}

	mreq := &unix.PacketMreq{
		Ifindex: int32(ifi.Index),
		Type:    unix.PACKET_MR_PROMISC,
	}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: promiscuous membership: %v", ErrOpen, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: nonblock: %v", ErrOpen, err)
	}

	// Best effort; transmit still works without these.
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PRIORITY, sendPrio)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBufSize)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sndBufSize)

	h := &afPacket{fd: fd, ifindex: ifi.Index, rbuf: make([]byte, snapLen)}
	if len(ifi.HardwareAddr) == 6 {
		copy(h.mac[:], ifi.HardwareAddr)
	}
	return h, nil
}

func (h *afPacket) Send(frame []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  h.ifindex,
		Halen:    6,
	}
	copy(sll.Addr[:], frame[:6])
	if err := unix.Sendto(h.fd, frame, 0, sll); err != nil {
		return 0, err
	}
	return len(frame), nil
}

func (h *afPacket) Receive() ([]byte, error) {
	if h.closed {
		return nil, ErrClosed
	}
	n, _, err := unix.Recvfrom(h.fd, h.rbuf, unix.MSG_DONTWAIT)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, h.rbuf[:n])
	return out, nil
}

func (h *afPacket) LocalMAC() eth.MAC {
	return h.mac
}

func (h *afPacket) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return unix.Close(h.fd)
}
