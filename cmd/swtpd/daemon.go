// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/config"
	"github.com/swtp/swtp-go/pkg/conn"
	"github.com/swtp/swtp-go/pkg/discovery"
	"github.com/swtp/swtp-go/pkg/journal"
	"github.com/swtp/swtp-go/pkg/metrics"
	"github.com/swtp/swtp-go/pkg/session"
	"github.com/swtp/swtp-go/pkg/transport"
)

// daemon accepts one inbound transfer after another on its transport.
type daemon struct {
	outputDir  string
	connConfig conn.Config

	transport transport.Conn
	journal   *journal.Journal
	collector *metrics.Collector
	registry  *prometheus.Registry
	discovery *discovery.Manager
}

// newDaemon creates a daemon on a bound transport. On failure, the transport is closed.
func newDaemon(conf config.Config, t transport.Conn) (d *daemon, err error) {
	d = &daemon{
		outputDir: conf.Responder.OutputDir,
		transport: t,
		collector: metrics.NewCollector(),
		registry:  prometheus.NewRegistry(),
	}

	defer func() {
		if err != nil {
			if closeErr := d.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
			d = nil
		}
	}()

	if d.connConfig, err = conf.ConnConfig(); err != nil {
		return
	}

	if err = os.MkdirAll(d.outputDir, 0755); err != nil {
		return
	}

	if err = d.registry.Register(d.collector); err != nil {
		return
	}

	if conf.Journal.Dir != "" {
		if d.journal, err = journal.Open(conf.Journal.Dir); err != nil {
			return
		}
	}

	if conf.Discovery.IPv4 || conf.Discovery.IPv6 {
		udpAddr, ok := t.LocalAddr().(*net.UDPAddr)
		if !ok {
			err = fmt.Errorf("discovery requires a UDP transport, not %v", t.LocalAddr())
			return
		}

		interval, intervalErr := conf.DiscoveryInterval()
		if intervalErr != nil {
			err = intervalErr
			return
		}

		announcement := discovery.Announcement{
			Node: conf.Responder.Node,
			Port: uint(udpAddr.Port),
		}
		if d.discovery, err = discovery.NewManager(announcement, interval, conf.Discovery.IPv4, conf.Discovery.IPv6); err != nil {
			return
		}
	}

	return
}

// serve accepts and receives transfers until the context is cancelled.
func (d *daemon) serve(ctx context.Context) error {
	log.WithField("address", d.transport.LocalAddr()).Info("Responder awaits connections")

	for {
		c, err := conn.Accept(ctx, d.transport, d.connConfig)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting: %w", err)
		}

		if err := d.receive(ctx, c); err != nil {
			log.WithError(err).WithField("peer", c.Peer()).Warn("Inbound transfer failed")
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// outputName for a transfer started at the given time.
func outputName(started time.Time) string {
	return started.UTC().Format("20060102T150405.000000000") + ".swtp"
}

// receive one transfer on an established connection into a new output file.
func (d *daemon) receive(ctx context.Context, c *conn.Conn) (err error) {
	started := time.Now()
	output := filepath.Join(d.outputDir, outputName(started))

	d.collector.Track(c)
	defer d.collector.Finish(c)

	f, err := os.Create(output)
	if err != nil {
		_ = c.Abort()
		d.collector.TransferDone(false, 0)
		return
	}

	report, err := session.Receive(ctx, c, f)
	if closeErr := f.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}

	if err != nil {
		d.collector.TransferDone(false, report.Bytes)
		if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = multierror.Append(err, rmErr)
		}
		return
	}

	d.collector.TransferDone(true, report.Bytes)

	record := journal.NewRecord(c.Peer().String(), output, started, report)
	log.WithFields(report.LogFields()).WithFields(log.Fields{
		"peer":   record.Peer,
		"output": output,
	}).Info("Stored inbound transfer")

	if d.journal != nil {
		err = d.journal.Push(record)
	}
	return
}

// Close the daemon's discovery, journal and transport.
func (d *daemon) Close() (errs error) {
	if d.discovery != nil {
		d.discovery.Close()
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := d.transport.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return
}
