// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fault provides deterministic fault injection for the ARQ engine.
//
// A Policy describes which datagrams should be dropped or corrupted, an
// Injector applies a Policy and keeps its counters. Injectors are created per
// connection and are not safe for concurrent use by multiple connections.
package fault

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/swtp/swtp-go/pkg/segment"
)

// Kind of a fault Policy.
type Kind uint8

const (
	// None disables fault injection.
	None Kind = iota

	// DropEveryNth drops every nth datagram.
	DropEveryNth

	// CorruptEveryNthExcept corrupts every nth datagram, except every mth.
	CorruptEveryNthExcept
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case DropEveryNth:
		return "drop"
	case CorruptEveryNthExcept:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Policy describes a fault injection configuration.
type Policy struct {
	Kind Kind
	N    uint64
	M    uint64
}

// Drop creates a Policy dropping every nth datagram.
func Drop(n uint64) Policy {
	return Policy{Kind: DropEveryNth, N: n}
}

// Corrupt creates a Policy corrupting every nth datagram except every mth. A
// zero m disables the exception.
func Corrupt(n, m uint64) Policy {
	return Policy{Kind: CorruptEveryNthExcept, N: n, M: m}
}

// CheckValid returns an error for an inconsistent Policy.
func (p Policy) CheckValid() error {
	switch p.Kind {
	case None:
		return nil

	case DropEveryNth:
		if p.N == 0 {
			return fmt.Errorf("drop policy requires n > 0")
		}
		return nil

	case CorruptEveryNthExcept:
		if p.N == 0 {
			return fmt.Errorf("corrupt policy requires n > 0")
		} else if p.M != 0 && p.M%p.N != 0 {
			return fmt.Errorf("corrupt policy's m (%d) must be a multiple of n (%d)", p.M, p.N)
		}
		return nil

	default:
		return fmt.Errorf("unknown fault kind %d", p.Kind)
	}
}

func (p Policy) String() string {
	switch p.Kind {
	case DropEveryNth:
		return fmt.Sprintf("drop:%d", p.N)
	case CorruptEveryNthExcept:
		if p.M == 0 {
			return fmt.Sprintf("corrupt:%d", p.N)
		}
		return fmt.Sprintf("corrupt:%d:%d", p.N, p.M)
	default:
		return p.Kind.String()
	}
}

// ParsePolicy parses the textual representation of a Policy, e.g., "none",
// "drop:10" or "corrupt:20:200". An empty string is treated as "none".
func ParsePolicy(s string) (p Policy, err error) {
	fields := strings.Split(strings.TrimSpace(s), ":")

	nums := make([]uint64, len(fields)-1)
	for i, field := range fields[1:] {
		if nums[i], err = strconv.ParseUint(field, 10, 64); err != nil {
			err = fmt.Errorf("fault policy %q: %w", s, err)
			return
		}
	}

	switch kind := fields[0]; {
	case kind == "" || kind == "none":
		if len(nums) != 0 {
			err = fmt.Errorf("fault policy %q: none takes no arguments", s)
		}
		return

	case kind == "drop" && len(nums) == 1:
		p = Drop(nums[0])

	case kind == "corrupt" && len(nums) == 1:
		p = Corrupt(nums[0], 0)

	case kind == "corrupt" && len(nums) == 2:
		p = Corrupt(nums[0], nums[1])

	default:
		err = fmt.Errorf("fault policy %q is unknown", s)
		return
	}

	err = p.CheckValid()
	return
}

// Injector applies a Policy. A nil Injector never injects any faults.
type Injector struct {
	policy Policy
	count  uint64

	dropped   uint64
	corrupted uint64
}

// NewInjector for a Policy. Nil is returned for the None Policy.
func NewInjector(p Policy) *Injector {
	if p.Kind == None {
		return nil
	}
	return &Injector{policy: p}
}

// Policy of this Injector.
func (inj *Injector) Policy() Policy {
	if inj == nil {
		return Policy{}
	}
	return inj.policy
}

// hit counts the next datagram and checks whether the Policy applies to it.
func (inj *Injector) hit() bool {
	n := atomic.AddUint64(&inj.count, 1)

	switch inj.policy.Kind {
	case DropEveryNth:
		return n%inj.policy.N == 0
	case CorruptEveryNthExcept:
		return n%inj.policy.N == 0 && (inj.policy.M == 0 || n%inj.policy.M != 0)
	default:
		return false
	}
}

// OnSend is called for every datagram before its transmission. The returned
// buffer should be sent instead. A corrupted datagram is a copy with a zeroed
// checksum field; the input buffer is never altered.
func (inj *Injector) OnSend(buf []byte) []byte {
	if inj == nil || inj.policy.Kind != CorruptEveryNthExcept || len(buf) < segment.HeaderSize {
		return buf
	}

	if !inj.hit() {
		return buf
	}

	corrupted := make([]byte, len(buf))
	copy(corrupted, buf)
	corrupted[segment.ChecksumOffset] = 0
	corrupted[segment.ChecksumOffset+1] = 0

	atomic.AddUint64(&inj.corrupted, 1)
	return corrupted
}

// OnReceive is called for every received datagram before its verification
// and reports whether this datagram should be dropped.
func (inj *Injector) OnReceive() bool {
	if inj == nil || inj.policy.Kind != DropEveryNth {
		return false
	}

	if !inj.hit() {
		return false
	}

	atomic.AddUint64(&inj.dropped, 1)
	return true
}

// Dropped returns the amount of dropped datagrams.
func (inj *Injector) Dropped() uint64 {
	if inj == nil {
		return 0
	}
	return atomic.LoadUint64(&inj.dropped)
}

// Corrupted returns the amount of corrupted datagrams.
func (inj *Injector) Corrupted() uint64 {
	if inj == nil {
		return 0
	}
	return atomic.LoadUint64(&inj.corrupted)
}
