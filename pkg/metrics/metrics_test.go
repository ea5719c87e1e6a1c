// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/swtp/swtp-go/pkg/arq"
)

type fixedSource struct {
	stats arq.Stats
}

func (fs *fixedSource) Stats() arq.Stats {
	return fs.stats
}

func TestCollector(t *testing.T) {
	c := NewCollector()

	a := &fixedSource{arq.Stats{Transmissions: 10, Retransmissions: 2, ChecksumFailures: 1}}
	b := &fixedSource{arq.Stats{Transmissions: 5, Dropped: 3}}

	c.Track(a)
	c.Track(b)

	if n := testutil.CollectAndCount(c); n != 13 {
		t.Fatalf("expected 13 metrics, got %d", n)
	}

	expected := `
# HELP swtp_arq_transmissions_total Transmitted segments, including retransmissions
# TYPE swtp_arq_transmissions_total counter
swtp_arq_transmissions_total 15
# HELP swtp_connections_active Currently tracked connections
# TYPE swtp_connections_active gauge
swtp_connections_active 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"swtp_arq_transmissions_total", "swtp_connections_active"); err != nil {
		t.Fatal(err)
	}

	// A finished source keeps its final statistics.
	c.Finish(a)
	a.stats.Transmissions = 100
	c.Finish(a)
	c.TransferDone(true, 4096)
	c.TransferDone(false, 0)

	expected = `
# HELP swtp_arq_transmissions_total Transmitted segments, including retransmissions
# TYPE swtp_arq_transmissions_total counter
swtp_arq_transmissions_total 15
# HELP swtp_connections_active Currently tracked connections
# TYPE swtp_connections_active gauge
swtp_connections_active 1
# HELP swtp_transfers_total Finished transfers by result
# TYPE swtp_transfers_total counter
swtp_transfers_total{result="completed"} 1
swtp_transfers_total{result="failed"} 1
# HELP swtp_transfer_bytes_total Payload octets of completed transfers
# TYPE swtp_transfer_bytes_total counter
swtp_transfer_bytes_total 4096
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"swtp_arq_transmissions_total", "swtp_connections_active",
		"swtp_transfers_total", "swtp_transfer_bytes_total"); err != nil {
		t.Fatal(err)
	}

	if s := c.Stats(); s.Dropped != 3 || s.Retransmissions != 2 {
		t.Fatalf("unexpected stats %v", s)
	}
}

func TestCollectorRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector()); err != nil {
		t.Fatal(err)
	}
}
