// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package conn implements the connection state machine on top of the ARQ engine.
//
// A Conn is created either by Dial, running the initiator's three-way
// handshake, or by Accept, waiting as a responder for an incoming SYN. An
// established Conn exchanges data segments one at a time and is released by a
// four-message teardown, started by the side which finished sending.
//
// Replies which got lost are recovered by re-answering: a Conn remembers the
// last segment it acknowledged and answers every retransmission of it again,
// without handing it to the caller a second time.
package conn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/segment"
	"github.com/swtp/swtp-go/pkg/transport"
)

var (
	// ErrHandshakeFailed is returned if the peer answered the handshake with
	// wrong flags or a wrong ack sequence.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrClosed is returned for every operation on a closed Conn.
	ErrClosed = errors.New("connection closed")

	// ErrNotEstablished is returned for data operations outside the Established State.
	ErrNotEstablished = errors.New("connection not established")
)

const (
	// synAckSequence is the ack sequence of the SYN.
	synAckSequence uint32 = 0

	// handshakeAckSequence is the ack sequence of both the SYN+ACK and the final ACK.
	handshakeAckSequence uint32 = 1
)

// answer is the last acknowledged segment and the reply sent for it.
type answer struct {
	prompt segment.Segment
	reply  *segment.Segment
}

// matches checks if a segment is a retransmission of the answered prompt. A
// data segment never matches a control prompt, even with equal header fields.
func (a *answer) matches(s segment.Segment) bool {
	return a != nil &&
		s.AckSequence == a.prompt.AckSequence &&
		s.DataSequence == a.prompt.DataSequence &&
		s.Flags == a.prompt.Flags &&
		bytes.Equal(s.Payload, a.prompt.Payload)
}

// Conn is a connection between two peers. A Conn serves a single transfer
// and is not safe for concurrent use, except for its State and Stats methods.
type Conn struct {
	role   Role
	config Config

	transport     transport.Conn
	ownsTransport bool
	engine        *arq.Engine

	stateMutex sync.RWMutex
	state      State

	// lastAck is the ack sequence last agreed upon by both sides.
	lastAck uint32

	// peerFin is the peer's FIN, received by Next. finAcked marks its acknowledgement.
	peerFin  *segment.Segment
	finAcked bool

	last       *answer
	duplicates uint64
}

func newConn(role Role, t transport.Conn, owns bool, config Config) *Conn {
	c := &Conn{
		role:          role,
		config:        config,
		transport:     t,
		ownsTransport: owns,
		engine:        arq.NewEngine(t, config.ARQ),
	}

	c.engine.OnUnmatched(c.onUnmatched)
	return c
}

// State of this Conn.
func (c *Conn) State() State {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()

	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMutex.Lock()
	old := c.state
	c.state = s
	c.stateMutex.Unlock()

	if old != s {
		c.logger().WithField("previous", old).Debug("Connection changed state")
	}
}

// Role of this Conn's endpoint.
func (c *Conn) Role() Role {
	return c.role
}

// Peer address of this Conn.
func (c *Conn) Peer() net.Addr {
	return c.engine.Peer()
}

// LocalAddr of the underlying transport.
func (c *Conn) LocalAddr() net.Addr {
	return c.transport.LocalAddr()
}

// LastAck returns the ack sequence last agreed upon by both sides.
func (c *Conn) LastAck() uint32 {
	return c.lastAck
}

// Stats of this Conn's ARQ engine.
func (c *Conn) Stats() arq.Stats {
	return c.engine.Stats()
}

// Duplicates returns the amount of retransmitted segments answered again.
func (c *Conn) Duplicates() uint64 {
	return atomic.LoadUint64(&c.duplicates)
}

func (c *Conn) String() string {
	return fmt.Sprintf("Conn(%v, %v <-> %v, %v)", c.role, c.LocalAddr(), c.Peer(), c.State())
}

func (c *Conn) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"role":  c.role,
		"local": c.LocalAddr(),
		"peer":  c.Peer(),
		"state": c.State(),
	})
}

// answerWith sends the reply for a prompt and remembers both for re-answering.
func (c *Conn) answerWith(prompt, reply segment.Segment) error {
	if err := c.engine.Send(reply); err != nil {
		return err
	}

	c.last = &answer{prompt: prompt, reply: &reply}
	return nil
}

// remember a prompt which was answered by the peer's own action, e.g., the
// handshake ACK, so that its retransmissions are ignored.
func (c *Conn) remember(prompt segment.Segment) {
	c.last = &answer{prompt: prompt}
}

// reanswer checks if a segment is a retransmission of the last answered prompt
// and sends the stored reply again.
func (c *Conn) reanswer(s segment.Segment) bool {
	if !c.last.matches(s) {
		return false
	}

	atomic.AddUint64(&c.duplicates, 1)

	if c.last.reply == nil {
		return true
	}

	c.logger().WithField("segment", s).Debug("Answering retransmitted segment again")
	if err := c.engine.Send(*c.last.reply); err != nil {
		c.logger().WithError(err).Warn("Failed to send a reply again")
	}
	return true
}

func (c *Conn) onUnmatched(s segment.Segment, _ net.Addr) {
	_ = c.reanswer(s)
}

// checkState returns an error if this Conn is not in the wanted State.
func (c *Conn) checkState(want State) error {
	switch s := c.State(); {
	case s == want:
		return nil
	case s == Closed:
		return ErrClosed
	default:
		return fmt.Errorf("%w: state is %v", ErrNotEstablished, s)
	}
}

// ackFor creates a Match for the plain ACK echoing the given ack sequence.
func ackFor(ackSeq uint32) arq.Match {
	return func(s segment.Segment) bool {
		return s.Flags.Has(segment.FlagAck) &&
			!s.Flags.Has(segment.FlagSyn) &&
			!s.Flags.Has(segment.FlagFin) &&
			s.AckSequence == ackSeq
	}
}

// Exchange sends a data segment and waits for the peer's acknowledgement of
// its ack sequence. The segment's ack sequence becomes the last agreed one.
func (c *Conn) Exchange(ctx context.Context, seg segment.Segment) (segment.Segment, error) {
	if err := c.checkState(Established); err != nil {
		return segment.Segment{}, err
	}

	reply, err := c.engine.SendAndAwait(ctx, seg, ackFor(seg.AckSequence))
	if err != nil {
		return segment.Segment{}, err
	}

	c.lastAck = seg.AckSequence
	return reply, nil
}

// Next waits for the peer's next data or FIN segment. Retransmissions of an
// already acknowledged segment are answered again and never returned twice.
// Receiving a FIN moves this Conn into the Closing State; it must be answered
// by Acknowledge and Close afterwards.
//
// Next waits without any bound on timeouts, only the context stops it.
func (c *Conn) Next(ctx context.Context) (segment.Segment, error) {
	if err := c.checkState(Established); err != nil {
		return segment.Segment{}, err
	}

	match := func(s segment.Segment) bool {
		return !s.Flags.Has(segment.FlagSyn) &&
			(s.Flags.Has(segment.FlagAck) || s.Flags.Has(segment.FlagFin)) &&
			!c.last.matches(s)
	}

	for {
		seg, from, err := c.engine.ReceiveOne(ctx, c.engine.Config().Timeout)
		if errors.Is(err, arq.ErrTimeout) {
			continue
		} else if err != nil {
			return segment.Segment{}, err
		}

		if !match(seg) {
			c.onUnmatched(seg, from)
			continue
		}

		c.lastAck = seg.AckSequence

		if seg.Flags.Has(segment.FlagFin) {
			fin := seg
			c.peerFin = &fin
			c.setState(Closing)
			c.logger().WithField("segment", seg).Info("Peer started the teardown")
		}

		return seg, nil
	}
}

// Acknowledge a segment returned by Next by echoing its ack sequence and an
// incremented data sequence.
func (c *Conn) Acknowledge(seg segment.Segment) error {
	switch s := c.State(); s {
	case Established, Closing:
	case Closed:
		return ErrClosed
	default:
		return fmt.Errorf("%w: state is %v", ErrNotEstablished, s)
	}

	if c.peerFin != nil && seg.Flags.Has(segment.FlagFin) {
		c.finAcked = true
	}

	return c.answerWith(seg, segment.NewAck(seg.AckSequence, seg.DataSequence+1))
}
