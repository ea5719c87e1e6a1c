// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxSegmentSize is the maximum size of a serialized segment in octets.
	MaxSegmentSize = 1460

	// HeaderSize is the fixed size of a segment's header in octets.
	HeaderSize = 12

	// MaxPayloadSize is the maximum payload a single segment can carry.
	MaxPayloadSize = MaxSegmentSize - HeaderSize

	DataSequenceOffset = 0
	AckSequenceOffset  = 4
	ReservedOffset     = 8
	FlagsOffset        = 9
	ChecksumOffset     = 10
	PayloadOffset      = HeaderSize
)

var (
	// ErrMalformed is returned for buffers which cannot hold a segment.
	ErrMalformed = errors.New("malformed segment")

	// ErrChecksumMismatch is returned for segments failing the checksum verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPayloadTooLarge is returned when marshalling a payload above MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum segment size")
)

// Segment is a single unit exchanged over the datagram transport.
//
// A Segment is a value; all constructors copy the given payload and all
// methods leave the Segment untouched.
type Segment struct {
	// DataSequence is the payload index, assigned by the data's sender.
	DataSequence uint32

	// AckSequence is an opaque correlation token, which must be echoed back
	// within the acknowledgement.
	AckSequence uint32

	Flags Flags

	Payload []byte
}

func copyPayload(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}

	p := make([]byte, len(payload))
	copy(p, payload)
	return p
}

// NewSyn creates the initial SYN segment of a handshake.
func NewSyn() Segment {
	return Segment{Flags: FlagSyn}
}

// NewSynAck creates a handshake's SYN+ACK reply for the given Ack Sequence.
func NewSynAck(ackSeq uint32) Segment {
	return Segment{AckSequence: ackSeq, Flags: FlagSyn | FlagAck}
}

// NewAck creates a plain acknowledgement.
func NewAck(ackSeq, dataSeq uint32) Segment {
	return Segment{DataSequence: dataSeq, AckSequence: ackSeq, Flags: FlagAck}
}

// NewFin creates a dedicated FIN control segment.
func NewFin(ackSeq uint32) Segment {
	return Segment{AckSequence: ackSeq, Flags: FlagFin}
}

// NewData creates a data segment, carrying the ACK flag.
func NewData(dataSeq, ackSeq uint32, payload []byte) Segment {
	return Segment{
		DataSequence: dataSeq,
		AckSequence:  ackSeq,
		Flags:        FlagAck,
		Payload:      copyPayload(payload),
	}
}

// WithFlags returns a copy of this Segment with the given Flags.
func (s Segment) WithFlags(f Flags) Segment {
	s.Flags = f
	s.Payload = copyPayload(s.Payload)
	return s
}

// IsControl checks if this Segment carries no payload.
func (s Segment) IsControl() bool {
	return len(s.Payload) == 0
}

// Len returns the serialized size of this Segment.
func (s Segment) Len() int {
	return HeaderSize + len(s.Payload)
}

func (s Segment) String() string {
	return fmt.Sprintf("Segment(data=%d, ack=%d, flags=%v, payload=%d)",
		s.DataSequence, s.AckSequence, s.Flags, len(s.Payload))
}

// Marshal serializes this Segment into a fresh buffer, including its checksum.
func (s Segment) Marshal() ([]byte, error) {
	if len(s.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(s.Payload), MaxPayloadSize)
	}

	buf := make([]byte, s.Len())

	binary.BigEndian.PutUint32(buf[DataSequenceOffset:], s.DataSequence)
	binary.BigEndian.PutUint32(buf[AckSequenceOffset:], s.AckSequence)
	buf[ReservedOffset] = 0
	buf[FlagsOffset] = byte(s.Flags)
	copy(buf[PayloadOffset:], s.Payload)

	// The checksum field is zero while calculating the checksum.
	binary.BigEndian.PutUint16(buf[ChecksumOffset:], Checksum(buf))

	return buf, nil
}

// Unmarshal deserializes a buffer into a Segment without verifying its checksum.
// The payload is copied.
func Unmarshal(buf []byte) (s Segment, err error) {
	if len(buf) < HeaderSize {
		err = fmt.Errorf("%w: %d octets are shorter than the header", ErrMalformed, len(buf))
		return
	} else if len(buf) > MaxSegmentSize {
		err = fmt.Errorf("%w: %d octets exceed %d", ErrMalformed, len(buf), MaxSegmentSize)
		return
	} else if r := buf[ReservedOffset]; r != 0 {
		err = fmt.Errorf("%w: reserved octet is %#x", ErrMalformed, r)
		return
	}

	s = Segment{
		DataSequence: binary.BigEndian.Uint32(buf[DataSequenceOffset:]),
		AckSequence:  binary.BigEndian.Uint32(buf[AckSequenceOffset:]),
		Flags:        Flags(buf[FlagsOffset]),
		Payload:      copyPayload(buf[PayloadOffset:]),
	}
	return
}

// Parse verifies a received buffer's checksum and deserializes it afterwards.
func Parse(buf []byte) (Segment, error) {
	if len(buf) < HeaderSize {
		return Segment{}, fmt.Errorf("%w: %d octets are shorter than the header", ErrMalformed, len(buf))
	}

	if !Verify(buf) {
		return Segment{}, fmt.Errorf("%w: residue %#04x", ErrChecksumMismatch, Checksum(buf))
	}

	return Unmarshal(buf)
}
