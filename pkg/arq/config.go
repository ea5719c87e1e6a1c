// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package arq

import (
	"fmt"
	"time"

	"github.com/swtp/swtp-go/pkg/fault"
)

// DefaultTimeout is the receive timeout before a segment is retransmitted.
const DefaultTimeout = 100 * time.Millisecond

// Retry bounds the retransmissions resp. passive waiting rounds of a single
// ARQ operation. Zero values mean no bound, which is the default: a peer that
// has disappeared results in waiting forever.
type Retry struct {
	// MaxAttempts limits the transmissions resp. receive windows per operation.
	MaxAttempts int

	// MaxElapsed limits the time spent per operation.
	MaxElapsed time.Duration
}

// Unbounded checks if neither attempts nor time are limited.
func (r Retry) Unbounded() bool {
	return r.MaxAttempts <= 0 && r.MaxElapsed <= 0
}

// exhausted checks if another attempt is forbidden after the given amount of
// attempts, which were started at start.
func (r Retry) exhausted(attempts int, start time.Time) bool {
	if r.MaxAttempts > 0 && attempts >= r.MaxAttempts {
		return true
	}
	if r.MaxElapsed > 0 && time.Since(start) >= r.MaxElapsed {
		return true
	}
	return false
}

func (r Retry) String() string {
	if r.Unbounded() {
		return "unbounded"
	}
	return fmt.Sprintf("attempts=%d,elapsed=%v", r.MaxAttempts, r.MaxElapsed)
}

// Config for an Engine.
type Config struct {
	// Timeout for a single receive window.
	Timeout time.Duration

	// Retry bounds each operation.
	Retry Retry

	// SendFault is applied to every outgoing datagram.
	SendFault fault.Policy

	// ReceiveFault is applied to every incoming datagram, before verification.
	ReceiveFault fault.Policy
}

// DefaultConfig with the DefaultTimeout, unbounded retries and without faults.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout}
}

// CheckValid returns an error for an unusable Config.
func (c Config) CheckValid() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, not %v", c.Timeout)
	}
	if err := c.SendFault.CheckValid(); err != nil {
		return fmt.Errorf("send fault: %w", err)
	}
	if err := c.ReceiveFault.CheckValid(); err != nil {
		return fmt.Errorf("receive fault: %w", err)
	}
	return nil
}
