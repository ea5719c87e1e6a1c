// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fault

import (
	"bytes"
	"testing"

	"github.com/swtp/swtp-go/pkg/segment"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		text   string
		valid  bool
		policy Policy
	}{
		{"", true, Policy{}},
		{"none", true, Policy{}},
		{"drop:10", true, Drop(10)},
		{"corrupt:20:200", true, Corrupt(20, 200)},
		{"corrupt:5", true, Corrupt(5, 0)},
		{"drop:0", false, Policy{}},
		{"drop", false, Policy{}},
		{"corrupt:20:30", false, Policy{}},
		{"none:1", false, Policy{}},
		{"explode:3", false, Policy{}},
		{"drop:x", false, Policy{}},
	}

	for _, test := range tests {
		p, err := ParsePolicy(test.text)
		if (err == nil) != test.valid {
			t.Fatalf("%q: error state was not expected; valid := %t, got := %v", test.text, test.valid, err)
		} else if !test.valid {
			continue
		} else if p != test.policy {
			t.Fatalf("%q: expected %v, got %v", test.text, test.policy, p)
		}

		if p2, err := ParsePolicy(p.String()); err != nil || p2 != p {
			t.Fatalf("%v does not survive String: %v, %v", p, p2, err)
		}
	}
}

func TestInjectorDrop(t *testing.T) {
	inj := NewInjector(Drop(10))

	var dropped []int
	for i := 1; i <= 35; i++ {
		if inj.OnReceive() {
			dropped = append(dropped, i)
		}
	}

	if len(dropped) != 3 || dropped[0] != 10 || dropped[1] != 20 || dropped[2] != 30 {
		t.Fatalf("unexpected drops: %v", dropped)
	}
	if inj.Dropped() != 3 {
		t.Fatalf("Dropped counter is %d", inj.Dropped())
	}

	// A drop policy never corrupts.
	buf, _ := segment.NewAck(1, 1).Marshal()
	if out := inj.OnSend(buf); !bytes.Equal(out, buf) {
		t.Fatal("drop policy altered an outgoing datagram")
	}
}

func TestInjectorCorrupt(t *testing.T) {
	inj := NewInjector(Corrupt(20, 200))
	buf, _ := segment.NewData(1, 1000, []byte("payload")).Marshal()

	var corrupted []int
	for i := 1; i <= 400; i++ {
		out := inj.OnSend(buf)
		if !bytes.Equal(out, buf) {
			corrupted = append(corrupted, i)

			if segment.Verify(out) {
				t.Fatalf("corrupted datagram %d still verifies", i)
			}
		}
	}

	// 20 multiples of 20 within 400, except 200 and 400.
	if len(corrupted) != 18 {
		t.Fatalf("expected 18 corruptions, got %d: %v", len(corrupted), corrupted)
	}
	for _, i := range corrupted {
		if i%20 != 0 || i%200 == 0 {
			t.Fatalf("datagram %d should not have been corrupted", i)
		}
	}

	if !segment.Verify(buf) {
		t.Fatal("input buffer was altered")
	}
	if inj.Corrupted() != 18 {
		t.Fatalf("Corrupted counter is %d", inj.Corrupted())
	}
}

func TestInjectorNil(t *testing.T) {
	var inj *Injector = NewInjector(Policy{})
	if inj != nil {
		t.Fatal("None policy created an Injector")
	}

	buf, _ := segment.NewSyn().Marshal()
	if out := inj.OnSend(buf); !bytes.Equal(out, buf) {
		t.Fatal("nil Injector altered a datagram")
	}
	if inj.OnReceive() || inj.Dropped() != 0 || inj.Corrupted() != 0 {
		t.Fatal("nil Injector injected a fault")
	}
}
