// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package conn

import (
	"fmt"
	"time"

	"github.com/swtp/swtp-go/pkg/arq"
)

// Config for a Conn.
type Config struct {
	// ARQ configures the connection's Engine.
	ARQ arq.Config

	// Linger is the time the active closer keeps answering retransmitted FINs
	// after sending its final ACK. Zero selects three times the ARQ timeout, a
	// negative value disables lingering.
	Linger time.Duration
}

// DefaultConfig based on arq.DefaultConfig.
func DefaultConfig() Config {
	return Config{ARQ: arq.DefaultConfig()}
}

// CheckValid returns an error for an unusable Config.
func (c Config) CheckValid() error {
	if err := c.ARQ.CheckValid(); err != nil {
		return fmt.Errorf("arq: %w", err)
	}
	return nil
}

// linger duration, resolved against the effective ARQ timeout.
func (c Config) linger(timeout time.Duration) time.Duration {
	switch {
	case c.Linger < 0:
		return 0
	case c.Linger == 0:
		return 3 * timeout
	default:
		return c.Linger
	}
}
