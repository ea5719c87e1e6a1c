// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package arq

import (
	"fmt"
	"sync/atomic"
)

// Stats of an Engine.
type Stats struct {
	// Transmissions counts every sent datagram, including retransmissions.
	Transmissions uint64
	// Retransmissions counts repeated transmissions after a timeout.
	Retransmissions uint64
	// Timeouts counts receive windows without a matching segment.
	Timeouts uint64

	// Accepted counts segments matching an expectation.
	Accepted uint64
	// ChecksumFailures counts discarded segments with an invalid checksum.
	ChecksumFailures uint64
	// Malformed counts discarded datagrams too short for a header.
	Malformed uint64
	// Unexpected counts valid, but discarded segments.
	Unexpected uint64

	// Dropped counts incoming datagrams dropped by fault injection.
	Dropped uint64
	// Corrupted counts outgoing datagrams corrupted by fault injection.
	Corrupted uint64
}

// Add sums up two Stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Transmissions:    s.Transmissions + o.Transmissions,
		Retransmissions:  s.Retransmissions + o.Retransmissions,
		Timeouts:         s.Timeouts + o.Timeouts,
		Accepted:         s.Accepted + o.Accepted,
		ChecksumFailures: s.ChecksumFailures + o.ChecksumFailures,
		Malformed:        s.Malformed + o.Malformed,
		Unexpected:       s.Unexpected + o.Unexpected,
		Dropped:          s.Dropped + o.Dropped,
		Corrupted:        s.Corrupted + o.Corrupted,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("Stats(tx=%d, retx=%d, timeouts=%d, accepted=%d, checksum=%d, malformed=%d, unexpected=%d, dropped=%d, corrupted=%d)",
		s.Transmissions, s.Retransmissions, s.Timeouts, s.Accepted, s.ChecksumFailures,
		s.Malformed, s.Unexpected, s.Dropped, s.Corrupted)
}

// counters are the atomically updated fields behind Stats.
type counters struct {
	transmissions    uint64
	retransmissions  uint64
	timeouts         uint64
	accepted         uint64
	checksumFailures uint64
	malformed        uint64
	unexpected       uint64
}

func (c *counters) inc(field *uint64) {
	atomic.AddUint64(field, 1)
}

func (c *counters) snapshot() Stats {
	return Stats{
		Transmissions:    atomic.LoadUint64(&c.transmissions),
		Retransmissions:  atomic.LoadUint64(&c.retransmissions),
		Timeouts:         atomic.LoadUint64(&c.timeouts),
		Accepted:         atomic.LoadUint64(&c.accepted),
		ChecksumFailures: atomic.LoadUint64(&c.checksumFailures),
		Malformed:        atomic.LoadUint64(&c.malformed),
		Unexpected:       atomic.LoadUint64(&c.unexpected),
	}
}
