// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package segment

import (
	"strings"
)

// Flags are the single-bit control flags of a Segment's header.
type Flags uint8

const (
	// FlagSyn requests or confirms the establishment of a connection.
	FlagSyn Flags = 0x01

	// FlagAck acknowledges the segment identified by the Ack Sequence.
	FlagAck Flags = 0x02

	// FlagFin announces that its sender has no more data to send.
	FlagFin Flags = 0x04
)

// Has checks if all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Set returns a copy of these Flags with the bits of f set.
func (fl Flags) Set(f Flags) Flags {
	return fl | f
}

// Clear returns a copy of these Flags with the bits of f cleared.
func (fl Flags) Clear(f Flags) Flags {
	return fl &^ f
}

func (fl Flags) String() string {
	var flags []string

	if fl.Has(FlagSyn) {
		flags = append(flags, "SYN")
	}
	if fl.Has(FlagAck) {
		flags = append(flags, "ACK")
	}
	if fl.Has(FlagFin) {
		flags = append(flags, "FIN")
	}

	if len(flags) == 0 {
		return "NONE"
	}
	return strings.Join(flags, "|")
}

// GetFlag reads a flag directly from a serialized segment. False is returned
// for buffers too short to contain a header.
func GetFlag(buf []byte, f Flags) bool {
	if len(buf) < HeaderSize {
		return false
	}
	return Flags(buf[FlagsOffset]).Has(f)
}

// SetFlag sets or clears a flag directly within a serialized segment. The
// checksum is not updated, so the buffer will not verify afterwards.
func SetFlag(buf []byte, f Flags, on bool) error {
	if len(buf) < HeaderSize {
		return ErrMalformed
	}

	if on {
		buf[FlagsOffset] = byte(Flags(buf[FlagsOffset]).Set(f))
	} else {
		buf[FlagsOffset] = byte(Flags(buf[FlagsOffset]).Clear(f))
	}
	return nil
}
