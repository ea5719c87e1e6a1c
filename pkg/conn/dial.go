// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package conn

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/segment"
	"github.com/swtp/swtp-go/pkg/transport"
)

// Dial performs the initiator's handshake with a peer over the given
// transport.Conn. The returned Conn takes the ownership of the transport and
// closes it at the end of its teardown. The transport is also closed if the
// handshake fails.
//
// The SYN is retransmitted until any SYN-bearing reply arrives. A reply without
// the ACK flag or with another ack sequence than 1 results in ErrHandshakeFailed.
func Dial(ctx context.Context, t transport.Conn, peer net.Addr, config Config) (*Conn, error) {
	c := newConn(Initiator, t, true, config)
	c.engine.SetPeer(peer)

	if err := c.handshake(ctx); err != nil {
		c.setState(Closed)

		var errs *multierror.Error
		errs = multierror.Append(errs, err)
		if closeErr := t.Close(); closeErr != nil {
			errs = multierror.Append(errs, closeErr)
		}
		return nil, errs.ErrorOrNil()
	}

	return c, nil
}

// DialUDP binds an ephemeral UDP socket and dials the peer's host:port address.
func DialUDP(ctx context.Context, address string, config Config) (*Conn, error) {
	peer, err := transport.ResolveAddr(address)
	if err != nil {
		return nil, err
	}

	t, err := transport.ListenUDP(":0")
	if err != nil {
		return nil, err
	}

	return Dial(ctx, t, peer, config)
}

func (c *Conn) handshake(ctx context.Context) error {
	c.setState(SynSent)
	c.logger().Debug("Sending SYN")

	reply, err := c.engine.SendAndAwait(ctx, segment.NewSyn(), func(s segment.Segment) bool {
		return s.Flags.Has(segment.FlagSyn)
	})
	if err != nil {
		return err
	}

	if !reply.Flags.Has(segment.FlagAck) || reply.AckSequence != handshakeAckSequence {
		c.logger().WithField("segment", reply).Warn("Peer answered SYN with an invalid segment")
		return fmt.Errorf("%w: received %v", ErrHandshakeFailed, reply)
	}

	// A lost final ACK results in a retransmitted SYN+ACK, which will be re-answered.
	if err := c.answerWith(reply, segment.NewAck(handshakeAckSequence, reply.DataSequence+1)); err != nil {
		return err
	}

	c.lastAck = handshakeAckSequence
	c.setState(Established)

	c.logger().WithFields(log.Fields{
		"transmissions": c.Stats().Transmissions,
	}).Info("Connection established")
	return nil
}
