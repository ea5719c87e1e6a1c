// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Linux-specific socket options for the UDP socket. SO_REUSEADDR allows a
// restarted responder to bind its fixed port again right away, the enlarged
// receive buffer absorbs bursts of retransmissions.

// listenControl is the net.ListenConfig's Control function to set the socket options.
func listenControl(_, _ string, rawConn syscall.RawConn) (err error) {
	const (
		// listenRcvBuf sets SO_RCVBUF, the socket's receive buffer in bytes.
		listenRcvBuf int = 1 << 20
	)

	opts := map[int]int{
		unix.SO_REUSEADDR: 1,
		unix.SO_RCVBUF:    listenRcvBuf,
	}

	ctrlErr := rawConn.Control(func(fd uintptr) {
		for opt, value := range opts {
			err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, value)
			if err != nil {
				return
			}
		}
	})
	if err == nil {
		err = ctrlErr
	}

	return
}
