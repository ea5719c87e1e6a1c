// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package conn

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/segment"
	"github.com/swtp/swtp-go/pkg/transport"
)

// Accept waits as a responder for an initiator's SYN and completes the
// handshake. The transport.Conn is borrowed and stays open after the returned
// Conn's teardown, so that a responder might Accept the next connection.
//
// Segments other than a SYN with ack sequence 0 are discarded while listening.
// If the configured retry bound is exhausted while waiting for the final ACK,
// the responder resets to listening. Only the context's cancellation or a
// transport failure aborts Accept.
func Accept(ctx context.Context, t transport.Conn, config Config) (*Conn, error) {
	c := newConn(Responder, t, false, config)

	for {
		if err := c.listen(ctx); err != nil {
			c.setState(Closed)
			return nil, err
		}

		err := c.respond(ctx)
		if err == nil {
			return c, nil
		} else if !errors.Is(err, arq.ErrRetriesExhausted) {
			c.setState(Closed)
			return nil, err
		}

		c.logger().WithError(err).Info("Handshake was not completed, listening again")
		c.engine.SetPeer(nil)
	}
}

func isSyn(s segment.Segment) bool {
	return s.Flags == segment.FlagSyn && s.AckSequence == synAckSequence
}

// listen until a valid SYN arrives and fix its sender as the peer.
func (c *Conn) listen(ctx context.Context) error {
	c.setState(Listening)

	for {
		seg, from, err := c.engine.ReceiveOne(ctx, c.engine.Config().Timeout)
		if errors.Is(err, arq.ErrTimeout) {
			continue
		} else if err != nil {
			return err
		}

		if !isSyn(seg) {
			c.logger().WithFields(log.Fields{
				"from":    from,
				"segment": seg,
			}).Debug("Discarding segment while listening")
			continue
		}

		c.engine.SetPeer(from)
		c.setState(SynReceived)
		c.logger().Debug("Received SYN")
		return nil
	}
}

// respond to an accepted SYN with a SYN+ACK until the final ACK arrives.
func (c *Conn) respond(ctx context.Context) error {
	synAck := segment.NewSynAck(handshakeAckSequence)

	ack, err := c.engine.SendAndAwait(ctx, synAck, func(s segment.Segment) bool {
		return s.Flags == segment.FlagAck && s.AckSequence == handshakeAckSequence && s.IsControl()
	})
	if err != nil {
		return err
	}

	c.remember(ack)
	c.lastAck = handshakeAckSequence
	c.setState(Established)

	c.logger().Info("Connection accepted")
	return nil
}
