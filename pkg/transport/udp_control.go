// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package transport

import (
	"syscall"
)

// listenControl does not alter any socket options outside of Linux.
func listenControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
