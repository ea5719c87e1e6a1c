// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// memoryAddr is the net.Addr of a MemoryConn.
type memoryAddr string

func (ma memoryAddr) Network() string {
	return "memory"
}

func (ma memoryAddr) String() string {
	return string(ma)
}

type memoryDatagram struct {
	data []byte
	from net.Addr
}

// Hub connects multiple MemoryConns and delivers datagrams between them. It
// mocks a network for testing.
type Hub struct {
	mutex sync.Mutex
	conns map[string]*MemoryConn

	datagramCounter int
	datagramDrop    int
}

// NewHub creates a new lossless Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*MemoryConn)}
}

// NewHubDrop creates a new Hub which drops each nth datagram.
func NewHubDrop(n int) *Hub {
	h := NewHub()
	h.datagramDrop = n
	return h
}

// connect a MemoryConn to this Hub. This method is called from the NewMemoryConn function.
func (h *Hub) connect(m *MemoryConn) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.conns[m.addr.String()]; exists {
		return fmt.Errorf("address %s is already in use", m.addr)
	}
	h.conns[m.addr.String()] = m
	return nil
}

func (h *Hub) disconnect(m *MemoryConn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.conns, m.addr.String())
}

// deliver a datagram to its destination, if this one exists and the datagram
// is not dropped.
func (h *Hub) deliver(dg memoryDatagram, to net.Addr) {
	h.mutex.Lock()
	h.datagramCounter++
	drop := h.datagramDrop != 0 && h.datagramCounter%h.datagramDrop == 0
	dst, ok := h.conns[to.String()]
	h.mutex.Unlock()

	if drop || !ok {
		return
	}
	dst.enqueue(dg)
}

// MemoryConn is an in-memory Conn, attached to a Hub.
type MemoryConn struct {
	addr memoryAddr
	hub  *Hub

	inChan    chan memoryDatagram
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewMemoryConn creates a new MemoryConn with the given address and connects it to a Hub.
func NewMemoryConn(hub *Hub, address string) (*MemoryConn, error) {
	m := &MemoryConn{
		addr:      memoryAddr(address),
		hub:       hub,
		inChan:    make(chan memoryDatagram, 64),
		closeChan: make(chan struct{}),
	}

	if err := hub.connect(m); err != nil {
		return nil, err
	}
	return m, nil
}

// enqueue a datagram; a full queue drops it, just like a socket buffer.
func (m *MemoryConn) enqueue(dg memoryDatagram) {
	select {
	case <-m.closeChan:
	case m.inChan <- dg:
	default:
	}
}

func (m *MemoryConn) Send(b []byte, to net.Addr) error {
	select {
	case <-m.closeChan:
		return ErrClosed
	default:
	}

	data := make([]byte, len(b))
	copy(data, b)

	m.hub.deliver(memoryDatagram{data: data, from: m.addr}, to)
	return nil
}

func (m *MemoryConn) Receive(deadline time.Time) ([]byte, net.Addr, error) {
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case dg := <-m.inChan:
		return dg.data, dg.from, nil
	case <-m.closeChan:
		return nil, nil, ErrClosed
	case <-timeout:
		return nil, nil, ErrTimeout
	}
}

func (m *MemoryConn) LocalAddr() net.Addr {
	return m.addr
}

func (m *MemoryConn) Close() error {
	m.closeOnce.Do(func() {
		close(m.closeChan)
		m.hub.disconnect(m)
	})
	return nil
}

func (m *MemoryConn) String() string {
	return fmt.Sprintf("memory://%s", m.addr)
}
