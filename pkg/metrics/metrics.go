// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exports ARQ statistics and transfer counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/swtp/swtp-go/pkg/arq"
)

const namespace = "swtp"

// StatsSource provides ARQ statistics, e.g., a *conn.Conn.
type StatsSource interface {
	Stats() arq.Stats
}

// statDesc binds a Stats field to its metric.
type statDesc struct {
	desc  *prometheus.Desc
	value func(arq.Stats) uint64
}

func newStatDesc(name, help string, value func(arq.Stats) uint64) statDesc {
	return statDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "arq", name), help, nil, nil),
		value: value,
	}
}

// Collector is a prometheus.Collector over the Stats of all tracked
// connections. Statistics of finished connections are retained.
type Collector struct {
	mutex    sync.Mutex
	live     map[StatsSource]struct{}
	finished arq.Stats

	transfersCompleted uint64
	transfersFailed    uint64
	transferBytes      uint64

	statDescs         []statDesc
	activeDesc        *prometheus.Desc
	transfersDesc     *prometheus.Desc
	transferBytesDesc *prometheus.Desc
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		live: make(map[StatsSource]struct{}),

		statDescs: []statDesc{
			newStatDesc("transmissions_total", "Transmitted segments, including retransmissions",
				func(s arq.Stats) uint64 { return s.Transmissions }),
			newStatDesc("retransmissions_total", "Segments retransmitted after a timeout",
				func(s arq.Stats) uint64 { return s.Retransmissions }),
			newStatDesc("timeouts_total", "Receive windows passed without a matching segment",
				func(s arq.Stats) uint64 { return s.Timeouts }),
			newStatDesc("accepted_total", "Segments matching an expectation",
				func(s arq.Stats) uint64 { return s.Accepted }),
			newStatDesc("checksum_failures_total", "Segments discarded due to an invalid checksum",
				func(s arq.Stats) uint64 { return s.ChecksumFailures }),
			newStatDesc("malformed_total", "Datagrams discarded as too short for a header",
				func(s arq.Stats) uint64 { return s.Malformed }),
			newStatDesc("unexpected_total", "Valid segments discarded as unexpected",
				func(s arq.Stats) uint64 { return s.Unexpected }),
			newStatDesc("fault_dropped_total", "Incoming datagrams dropped by fault injection",
				func(s arq.Stats) uint64 { return s.Dropped }),
			newStatDesc("fault_corrupted_total", "Outgoing datagrams corrupted by fault injection",
				func(s arq.Stats) uint64 { return s.Corrupted }),
		},

		activeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connections_active"),
			"Currently tracked connections",
			nil, nil),
		transfersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transfers_total"),
			"Finished transfers by result",
			[]string{"result"}, nil),
		transferBytesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transfer_bytes_total"),
			"Payload octets of completed transfers",
			nil, nil),
	}
}

// Track a live connection's statistics.
func (c *Collector) Track(src StatsSource) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.live[src] = struct{}{}
}

// Finish a tracked connection. Its final statistics are retained.
func (c *Collector) Finish(src StatsSource) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.live[src]; !ok {
		return
	}

	delete(c.live, src)
	c.finished = c.finished.Add(src.Stats())
}

// TransferDone counts a finished transfer and, if completed, its payload.
func (c *Collector) TransferDone(completed bool, bytes uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if completed {
		c.transfersCompleted++
		c.transferBytes += bytes
	} else {
		c.transfersFailed++
	}
}

// Stats sums up the statistics of all live and finished connections.
func (c *Collector) Stats() arq.Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.stats()
}

func (c *Collector) stats() arq.Stats {
	s := c.finished
	for src := range c.live {
		s = s.Add(src.Stats())
	}
	return s
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, sd := range c.statDescs {
		ch <- sd.desc
	}
	ch <- c.activeDesc
	ch <- c.transfersDesc
	ch <- c.transferBytesDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := c.stats()
	for _, sd := range c.statDescs {
		ch <- prometheus.MustNewConstMetric(sd.desc, prometheus.CounterValue, float64(sd.value(stats)))
	}

	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(len(c.live)))
	ch <- prometheus.MustNewConstMetric(c.transfersDesc, prometheus.CounterValue, float64(c.transfersCompleted), "completed")
	ch <- prometheus.MustNewConstMetric(c.transfersDesc, prometheus.CounterValue, float64(c.transfersFailed), "failed")
	ch <- prometheus.MustNewConstMetric(c.transferBytesDesc, prometheus.CounterValue, float64(c.transferBytes))
}
