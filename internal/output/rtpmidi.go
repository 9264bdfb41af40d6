// Package output implements the output controller (C5): MIDI clock
// scheduling over RTP-MIDI/UDP and relay pulse scheduling with a safety
// watchdog, sharing the same BPM-derived configuration.
package output

import (
	"bytes"
	"encoding/binary"
)

// RTP-MIDI header bits, per the RTP fixed header (RFC 3550) and the
// applicable real-time-over-RTP payload convention used for MIDI (RFC
// 6295). Version 2, no padding/extension/CSRC, marker set because the
// MIDI command section always carries exactly one command here.
const (
	rtpVersion2     = 0x80
	rtpMarkerBit    = 0x80
	rtpPayloadType  = 0x61 // 97 decimal, per spec.md §4.5
	rtpHeaderLength = 12
)

// Small MIDI-list header: B=0 (small header), J=0 (no journal), Z=0 (no
// delta time before the first, and only, command), LEN=1 (one command
// byte — the single-byte system real-time message has no data bytes).
const midiListHeaderSingleCommand = 0x01

// System real-time messages, the only payloads this scheduler ever sends.
const (
	MIDIStart byte = 0xFA
	MIDIClock byte = 0xF8
	MIDIStop  byte = 0xFC
)

// EncodeRTPMIDI builds an RTP-MIDI datagram carrying a single system
// real-time status byte. seq is the monotonically increasing RTP sequence
// number; tsUS is the packet's 32-bit microsecond timestamp field
// (wrapping is expected and harmless, matching spec.md §4.5).
func EncodeRTPMIDI(seq uint16, tsUS uint32, ssrc uint32, status byte) []byte {
	b := new(bytes.Buffer)
	b.Grow(rtpHeaderLength + 2)

	b.WriteByte(rtpVersion2)
	b.WriteByte(rtpMarkerBit | rtpPayloadType)
	binary.Write(b, binary.BigEndian, seq)
	binary.Write(b, binary.BigEndian, tsUS)
	binary.Write(b, binary.BigEndian, ssrc)

	b.WriteByte(midiListHeaderSingleCommand)
	b.WriteByte(status)

	return b.Bytes()
}
