// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package arq implements the stop-and-wait automatic repeat request engine.
//
// An Engine transmits a segment and waits for a matching reply, retransmitting
// the identical datagram whenever a receive window passes without a match.
// Corrupted, malformed or unexpected segments are discarded and the Engine
// keeps waiting within the same window. Exactly one segment is outstanding at
// any time.
package arq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/fault"
	"github.com/swtp/swtp-go/pkg/segment"
	"github.com/swtp/swtp-go/pkg/transport"
)

var (
	// ErrTimeout is returned by ReceiveOne if no valid segment arrived in time.
	ErrTimeout = errors.New("timeout")

	// ErrUnexpectedSegment describes a valid segment not matching the expectation.
	ErrUnexpectedSegment = errors.New("unexpected segment")

	// ErrRetriesExhausted is returned if the configured Retry bound was hit.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrNoPeer is returned when sending without a known peer.
	ErrNoPeer = errors.New("no peer address")

	// errDropped signals a datagram dropped by fault injection.
	errDropped = errors.New("dropped by fault injection")
)

// Match checks if a received segment is the expected one.
type Match func(segment.Segment) bool

// Engine is the ARQ engine for a single connection. An Engine is not safe for
// concurrent use; the protocol only allows one outstanding segment.
type Engine struct {
	conn   transport.Conn
	peer   net.Addr
	config Config

	sendFault    *fault.Injector
	receiveFault *fault.Injector

	counters counters

	unmatched func(segment.Segment, net.Addr)
}

// NewEngine for a transport.Conn. The Engine does not take the ownership of
// the transport.Conn and will never close it.
func NewEngine(conn transport.Conn, config Config) *Engine {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Engine{
		conn:         conn,
		config:       config,
		sendFault:    fault.NewInjector(config.SendFault),
		receiveFault: fault.NewInjector(config.ReceiveFault),
	}
}

// SetPeer fixes the remote address. Afterwards, segments from other addresses
// are discarded.
func (e *Engine) SetPeer(peer net.Addr) {
	e.peer = peer
}

// Peer returns the remote address, which might be nil.
func (e *Engine) Peer() net.Addr {
	return e.peer
}

// Config of this Engine.
func (e *Engine) Config() Config {
	return e.config
}

// OnUnmatched registers a callback for valid segments rejected by a Match.
func (e *Engine) OnUnmatched(f func(segment.Segment, net.Addr)) {
	e.unmatched = f
}

// Stats returns a snapshot of this Engine's counters.
func (e *Engine) Stats() Stats {
	s := e.counters.snapshot()
	s.Dropped = e.receiveFault.Dropped()
	s.Corrupted = e.sendFault.Corrupted()
	return s
}

func (e *Engine) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"local": e.conn.LocalAddr(),
		"peer":  e.peer,
	})
}

// transmit a serialized segment to the peer, passing the send fault hook.
func (e *Engine) transmit(data []byte) error {
	if e.peer == nil {
		return ErrNoPeer
	}

	corrupted := e.sendFault.Corrupted()
	out := e.sendFault.OnSend(data)
	if e.sendFault.Corrupted() != corrupted {
		e.logger().Debug("Fault injection corrupted an outgoing segment")
	}

	e.counters.inc(&e.counters.transmissions)
	return e.conn.Send(out, e.peer)
}

// Send a segment once, without waiting for any reply.
func (e *Engine) Send(seg segment.Segment) error {
	data, err := seg.Marshal()
	if err != nil {
		return err
	}

	e.logger().WithField("segment", seg).Trace("Sending segment")
	return e.transmit(data)
}

// receive the next datagram until the deadline and parse it. Discarded
// datagrams result in an error, which is not ErrTimeout.
func (e *Engine) receive(deadline time.Time) (seg segment.Segment, from net.Addr, err error) {
	var data []byte
	data, from, err = e.conn.Receive(deadline)
	if errors.Is(err, transport.ErrTimeout) {
		err = ErrTimeout
		return
	} else if err != nil {
		return
	}

	if e.receiveFault.OnReceive() {
		e.logger().WithField("from", from).Debug("Fault injection dropped an incoming datagram")
		err = errDropped
		return
	}

	if seg, err = segment.Parse(data); err != nil {
		switch {
		case errors.Is(err, segment.ErrChecksumMismatch):
			e.counters.inc(&e.counters.checksumFailures)
		default:
			e.counters.inc(&e.counters.malformed)
		}

		e.logger().WithFields(log.Fields{
			"from":  from,
			"error": err,
		}).Debug("Discarding invalid datagram")
		return
	}

	if e.peer != nil && !transport.SameAddr(from, e.peer) {
		e.counters.inc(&e.counters.unexpected)
		err = fmt.Errorf("%w: from foreign address %v", ErrUnexpectedSegment, from)

		e.logger().WithFields(log.Fields{
			"from":    from,
			"segment": seg,
		}).Debug("Discarding segment from foreign address")
		return
	}

	e.logger().WithField("segment", seg).Trace("Received segment")
	return
}

// isDiscard checks if a receive error only represents a discarded datagram.
func isDiscard(err error) bool {
	return errors.Is(err, errDropped) ||
		errors.Is(err, segment.ErrChecksumMismatch) ||
		errors.Is(err, segment.ErrMalformed) ||
		errors.Is(err, ErrUnexpectedSegment)
}

// reject a valid segment, which does not match the current expectation.
func (e *Engine) reject(seg segment.Segment, from net.Addr) {
	e.counters.inc(&e.counters.unexpected)

	e.logger().WithField("segment", seg).Debug("Discarding unexpected segment")

	if e.unmatched != nil {
		e.unmatched(seg, from)
	}
}

// SendAndAwait transmits a segment and blocks until a reply satisfying the
// Match arrives.
//
// Each transmission opens a receive window of the configured timeout. Invalid
// or unexpected segments are discarded without extending this window. When
// the window passes, the identical datagram is retransmitted. Without a
// configured Retry bound, this repeats until a match or the cancellation of
// the context.
func (e *Engine) SendAndAwait(ctx context.Context, seg segment.Segment, match Match) (segment.Segment, error) {
	data, err := seg.Marshal()
	if err != nil {
		return segment.Segment{}, err
	}

	logger := e.logger().WithField("segment", seg)
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return segment.Segment{}, err
		}

		if attempt > 1 {
			e.counters.inc(&e.counters.retransmissions)
			logger.WithField("attempt", attempt).Debug("Retransmitting segment")
		} else {
			logger.Trace("Sending segment")
		}

		if err := e.transmit(data); err != nil {
			return segment.Segment{}, err
		}

		deadline := time.Now().Add(e.config.Timeout)
		for {
			if err := ctx.Err(); err != nil {
				return segment.Segment{}, err
			}

			reply, from, err := e.receive(deadline)
			if err == nil {
				if match(reply) {
					e.counters.inc(&e.counters.accepted)
					return reply, nil
				}

				e.reject(reply, from)
				continue
			} else if isDiscard(err) {
				continue
			} else if errors.Is(err, ErrTimeout) {
				e.counters.inc(&e.counters.timeouts)
				break
			} else {
				return segment.Segment{}, err
			}
		}

		if e.config.Retry.exhausted(attempt, start) {
			return segment.Segment{}, fmt.Errorf("%w: no reply for %v after %d attempts", ErrRetriesExhausted, seg, attempt)
		}
	}
}

// ReceiveOne waits up to the timeout for the next valid segment. Invalid
// segments are discarded without extending the timeout, ErrTimeout is returned
// at its end.
func (e *Engine) ReceiveOne(ctx context.Context, timeout time.Duration) (segment.Segment, net.Addr, error) {
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return segment.Segment{}, nil, err
		}

		seg, from, err := e.receive(deadline)
		if err == nil {
			return seg, from, nil
		} else if isDiscard(err) {
			continue
		} else {
			if errors.Is(err, ErrTimeout) {
				e.counters.inc(&e.counters.timeouts)
			}
			return segment.Segment{}, nil, err
		}
	}
}

// Await passively waits for a segment satisfying the Match, without sending
// anything. Rejected segments are reported to the unmatched callback. Timeouts
// are retried within the configured Retry bound.
func (e *Engine) Await(ctx context.Context, match Match) (segment.Segment, error) {
	start := time.Now()
	windows := 0

	for {
		seg, from, err := e.ReceiveOne(ctx, e.config.Timeout)
		switch {
		case err == nil && match(seg):
			e.counters.inc(&e.counters.accepted)
			return seg, nil

		case err == nil:
			e.reject(seg, from)

		case errors.Is(err, ErrTimeout):
			if windows++; e.config.Retry.exhausted(windows, start) {
				return segment.Segment{}, fmt.Errorf("%w: nothing received after %d windows", ErrRetriesExhausted, windows)
			}

		default:
			return segment.Segment{}, err
		}
	}
}
