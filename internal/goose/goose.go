// Package goose implements a partial IEC 61850-8-1 GOOSE codec: enough of
// the PDU to publish a control frame and to recognise one on the wire by its
// gocbRef, stNum and sqNum.
package goose

import (
	"encoding/binary"
	"strings"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/ber"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

// minFrameLen is the smallest frame that can carry a GOOSE PDU header.
const minFrameLen = 28

// Message holds the fields the partial decoder extracts. Fields not present
// in the frame keep their zero value.
type Message struct {
	Valid             bool
	AppID             uint16
	GocbRef           string
	TimeAllowedToLive uint32
	DatSet            string
	StNum             uint32
	SqNum             uint32
}

// MatchesTrigger reports whether the message's gocbRef contains trigger.
// An empty trigger never matches.
func (m Message) MatchesTrigger(trigger string) bool {
	return m.Valid && trigger != "" && strings.Contains(m.GocbRef, trigger)
}

// Decode attempts to interpret frame as a GOOSE publication. The frame must
// start at the destination MAC; an 802.1Q tag is stepped over when present.
// Decode never fails hard: anything unrecognisable yields Valid=false.
func Decode(frame []byte) Message {
	var msg Message
	if len(frame) < minFrameLen {
		return msg
	}
	etherType, off, err := eth.Classify(frame)
	if err != nil || etherType != eth.EtherTypeGOOSE {
		return msg
	}
	if off+8 > len(frame) {
		return msg
	}
	msg.AppID = binary.BigEndian.Uint16(frame[off : off+2])
	off += 8 // APPID, length, two reserved words

	if off >= len(frame) || frame[off] != 0x61 {
		return msg
	}
	pduLen, contentOff, err := ber.ReadLength(frame, off+1)
	if err != nil {
		return msg
	}
	end := contentOff + pduLen
	if end > len(frame) {
		end = len(frame)
	}

	for pos := contentOff; pos < end; {
		tag, value, next, err := ber.ReadTLV(frame, pos)
		if err != nil {
			break
		}
		switch tag {
		case 0x80:
			msg.GocbRef = string(value)
		case 0x81:
			if len(value) == 4 {
				msg.TimeAllowedToLive = binary.BigEndian.Uint32(value)
			}
		case 0x82:
			msg.DatSet = string(value)
		case 0x85:
			if v, err := ber.Uint(value); err == nil {
				msg.StNum = v
			}
		case 0x86:
			if v, err := ber.Uint(value); err == nil {
				msg.SqNum = v
			}
		}
		pos = next
	}

	msg.Valid = msg.GocbRef != ""
	return msg
}

// EncodeConfig describes the frame Encode builds.
type EncodeConfig struct {
	DstMAC eth.MAC
	SrcMAC eth.MAC
	VLAN   eth.VLAN
	AppID  uint16

	GocbRef           string
	TimeAllowedToLive uint32
	DatSet            string
	StNum             uint32
	SqNum             uint32
}

// Encode builds a complete on-wire GOOSE frame carrying the subset of the
// PDU this package decodes. The layout mirrors Decode's expectations so an
// encoded frame decodes to the same field values.
func Encode(cfg EncodeConfig) []byte {
	var pdu []byte
	pdu = ber.AppendTLV(pdu, 0x80, []byte(cfg.GocbRef))
	pdu = ber.AppendUint32TLV(pdu, 0x81, cfg.TimeAllowedToLive)
	pdu = ber.AppendTLV(pdu, 0x82, []byte(cfg.DatSet))
	pdu = ber.AppendUint32TLV(pdu, 0x85, cfg.StNum)
	pdu = ber.AppendUint32TLV(pdu, 0x86, cfg.SqNum)

	pduTLVLen := 1 + ber.LengthSize(len(pdu)) + len(pdu)
	// Length counts from the EtherType through the end of the PDU.
	total := 10 + pduTLVLen

	frame := eth.Prefix(cfg.DstMAC, cfg.SrcMAC, cfg.VLAN)
	frame = binary.BigEndian.AppendUint16(frame, eth.EtherTypeGOOSE)
	frame = binary.BigEndian.AppendUint16(frame, cfg.AppID)
	frame = binary.BigEndian.AppendUint16(frame, uint16(total))
	frame = append(frame, 0x00, 0x00, 0x00, 0x00)
	frame = append(frame, 0x61)
	frame = ber.AppendLength(frame, len(pdu))
	frame = append(frame, pdu...)
	return frame
}
