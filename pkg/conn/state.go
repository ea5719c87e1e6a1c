// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package conn

// State of a Conn.
type State uint8

const (
	// Closed is both the initiator's initial and every Conn's final State.
	Closed State = iota

	// Listening is the responder's State while waiting for a SYN.
	Listening

	// SynSent is the initiator's State after sending its SYN.
	SynSent

	// SynReceived is the responder's State after accepting a SYN.
	SynReceived

	// Established allows data to be exchanged.
	Established

	// Closing is entered when a teardown has started, locally or by the peer.
	Closing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Listening:
		return "listening"
	case SynSent:
		return "syn-sent"
	case SynReceived:
		return "syn-received"
	case Established:
		return "established"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Role of a Conn's endpoint.
type Role uint8

const (
	// Initiator started the handshake by sending a SYN.
	Initiator Role = iota

	// Responder accepted a SYN.
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return "unknown"
	}
}
