// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxDatagramSize is the largest possible UDP payload.
const maxDatagramSize = 65535

// UDPConn is a Conn based on a UDP socket.
type UDPConn struct {
	conn *net.UDPConn
	buf  []byte
}

// ListenUDP binds a new UDPConn to the given address, e.g., ":3303". An empty
// or zero port results in an ephemeral port.
func ListenUDP(address string) (*UDPConn, error) {
	lc := net.ListenConfig{Control: listenControl}

	pc, err := lc.ListenPacket(context.Background(), "udp", address)
	if err != nil {
		return nil, err
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("listening on %s resulted in a %T", address, pc)
	}

	log.WithField("address", conn.LocalAddr()).Debug("Bound UDP socket")

	return &UDPConn{
		conn: conn,
		buf:  make([]byte, maxDatagramSize),
	}, nil
}

// ResolveAddr resolves a "host:port" string to a UDP address.
func ResolveAddr(hostport string) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", hostport)
}

func (u *UDPConn) Send(b []byte, to net.Addr) error {
	udpAddr, ok := to.(*net.UDPAddr)
	if !ok {
		var err error
		if udpAddr, err = ResolveAddr(to.String()); err != nil {
			return err
		}
	}

	_, err := u.conn.WriteToUDP(b, udpAddr)
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (u *UDPConn) Receive(deadline time.Time) ([]byte, net.Addr, error) {
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, nil, ErrClosed
		}
		return nil, nil, err
	}

	n, addr, err := u.conn.ReadFromUDP(u.buf)
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, nil, ErrTimeout
	case errors.Is(err, net.ErrClosed):
		return nil, nil, ErrClosed
	case err != nil:
		return nil, nil, err
	}

	data := make([]byte, n)
	copy(data, u.buf[:n])
	return data, addr, nil
}

func (u *UDPConn) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDPConn) Close() error {
	return u.conn.Close()
}

func (u *UDPConn) String() string {
	return fmt.Sprintf("udp://%v", u.conn.LocalAddr())
}
