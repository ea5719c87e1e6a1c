// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package conn

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/segment"
)

// Close tears down this Conn and releases its resources.
//
// In the Established State, an active close is performed: a FIN with the next
// ack sequence is sent until acknowledged, the peer's FIN is awaited and
// answered. Afterwards, retransmitted FINs are answered again for the linger
// period. In the Closing State, after Next returned the peer's FIN, a passive
// close answers with an own FIN until it is acknowledged.
//
// Afterwards, the Conn is Closed and each operation fails with ErrClosed. The
// transport is closed as well, if this Conn owns it.
func (c *Conn) Close(ctx context.Context) error {
	var errs *multierror.Error

	switch s := c.State(); s {
	case Closed:
		return ErrClosed

	case Established:
		errs = multierror.Append(errs, c.closeActive(ctx))

	case Closing:
		errs = multierror.Append(errs, c.closePassive(ctx))

	default:
		c.logger().Debug("Closing a connection which was never established")
	}

	c.setState(Closed)

	if c.ownsTransport {
		errs = multierror.Append(errs, c.transport.Close())
	}

	if err := errs.ErrorOrNil(); err != nil {
		c.logger().WithError(err).Warn("Teardown failed")
		return err
	}

	c.logger().WithField("stats", c.Stats()).Info("Connection closed")
	return nil
}

// closeActive runs the closer's part of the teardown.
func (c *Conn) closeActive(ctx context.Context) error {
	c.setState(Closing)

	fin := segment.NewFin(c.lastAck + 1)
	c.logger().WithField("segment", fin).Debug("Sending FIN")

	if _, err := c.engine.SendAndAwait(ctx, fin, ackFor(fin.AckSequence)); err != nil {
		return err
	}
	c.lastAck = fin.AckSequence

	peerFinAck := fin.AckSequence + 1
	peerFin, err := c.engine.Await(ctx, func(s segment.Segment) bool {
		return s.Flags.Has(segment.FlagFin) && !s.Flags.Has(segment.FlagSyn) && s.AckSequence == peerFinAck
	})
	if err != nil {
		return err
	}

	if err := c.answerWith(peerFin, segment.NewAck(peerFin.AckSequence, peerFin.DataSequence+1)); err != nil {
		return err
	}
	c.lastAck = peerFin.AckSequence

	c.linger(ctx)
	return nil
}

// linger answers retransmissions of the peer's FIN, in case the final ACK got lost.
func (c *Conn) linger(ctx context.Context) {
	duration := c.config.linger(c.engine.Config().Timeout)
	if duration <= 0 {
		return
	}

	c.logger().WithField("duration", duration).Debug("Lingering after final ACK")

	deadline := time.Now().Add(duration)
	for remaining := duration; remaining > 0; remaining = time.Until(deadline) {
		seg, _, err := c.engine.ReceiveOne(ctx, remaining)
		if errors.Is(err, arq.ErrTimeout) {
			return
		} else if err != nil {
			c.logger().WithError(err).Debug("Lingering stopped")
			return
		}

		if !c.reanswer(seg) {
			c.logger().WithField("segment", seg).Debug("Discarding segment while lingering")
		}
	}
}

// closePassive runs the peer's part of the teardown, after receiving a FIN.
func (c *Conn) closePassive(ctx context.Context) error {
	if !c.finAcked {
		if err := c.Acknowledge(*c.peerFin); err != nil {
			return err
		}
	}

	fin := segment.NewFin(c.peerFin.AckSequence + 1)
	c.logger().WithFields(log.Fields{
		"segment":  fin,
		"peer-fin": c.peerFin,
	}).Debug("Answering peer's FIN with own FIN")

	// Retransmissions of the peer's FIN are re-answered by the unmatched hook.
	if _, err := c.engine.SendAndAwait(ctx, fin, ackFor(fin.AckSequence)); err != nil {
		return err
	}

	c.lastAck = fin.AckSequence
	return nil
}

// Abort releases this Conn without a teardown, e.g., after a failing payload
// source. The peer is not informed. Afterwards, the Conn is Closed.
func (c *Conn) Abort() error {
	if c.State() == Closed {
		return ErrClosed
	}

	c.setState(Closed)
	c.logger().Warn("Connection aborted")

	if c.ownsTransport {
		return c.transport.Close()
	}
	return nil
}
