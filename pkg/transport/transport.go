// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport provides the best-effort datagram endpoints swtp runs on.
//
// A Conn sends and receives whole datagrams. Datagrams might be dropped,
// duplicated or delayed, but are never partially delivered.
package transport

import (
	"errors"
	"net"
	"time"
)

var (
	// ErrTimeout is returned by Receive if no datagram arrived before the deadline.
	ErrTimeout = errors.New("receive timeout")

	// ErrClosed is returned when operating on a closed Conn.
	ErrClosed = errors.New("transport closed")
)

// Conn is a datagram endpoint.
type Conn interface {
	// Send a datagram to the given address. Delivery is not guaranteed.
	Send(b []byte, to net.Addr) error

	// Receive blocks until the next datagram arrives or the deadline passes,
	// resulting in ErrTimeout. A zero deadline blocks without a timeout.
	// Receive must not be called concurrently.
	Receive(deadline time.Time) ([]byte, net.Addr, error)

	// LocalAddr returns this endpoint's address.
	LocalAddr() net.Addr

	// Close this Conn. A blocking Receive returns with ErrClosed.
	Close() error
}

// SameAddr checks if two addresses identify the same endpoint.
func SameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Network() == b.Network() && a.String() == b.String()
}
