// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session pumps bulk payload through an established connection.
//
// A sending session reads either text lines or file chunks from a source,
// exchanges one data segment at a time and starts the teardown at the end of
// its stream. A receiving session writes every accepted payload into a sink
// and closes passively after the peer's FIN. A session either completes
// through the teardown or aborts with an error; there is no partial success.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/howeyc/crc16"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/segment"
)

var crc16table = crc16.MakeTable(crc16.CCITT)

const (
	// DefaultTextAckBase is the first ack sequence of a text transfer.
	DefaultTextAckBase uint32 = 20

	// DefaultFileAckBase is the first ack sequence of a file transfer.
	DefaultFileAckBase uint32 = 1000

	// DefaultSentinel ends a text transfer.
	DefaultSentinel = "end"

	// MinAckBase is the lowest ack base outside the handshake's ack sequences 0 and 1.
	MinAckBase uint32 = 2
)

// Conn is the connection a session runs on, implemented by *conn.Conn.
type Conn interface {
	Exchange(ctx context.Context, seg segment.Segment) (segment.Segment, error)
	Next(ctx context.Context) (segment.Segment, error)
	Acknowledge(seg segment.Segment) error
	Close(ctx context.Context) error
	Abort() error

	Stats() arq.Stats
	Duplicates() uint64
}

// Options for sending sessions.
type Options struct {
	// TextAckBase seeds the ack sequences of text transfers.
	TextAckBase uint32

	// FileAckBase seeds the ack sequences of file transfers.
	FileAckBase uint32

	// Sentinel is the text line ending a text transfer.
	Sentinel string
}

// DefaultOptions with the default ack bases and sentinel.
func DefaultOptions() Options {
	return Options{
		TextAckBase: DefaultTextAckBase,
		FileAckBase: DefaultFileAckBase,
		Sentinel:    DefaultSentinel,
	}
}

// CheckValid returns an error for ack bases within the handshake's sequence
// space or an empty sentinel.
func (o Options) CheckValid() (errs error) {
	if o.TextAckBase < MinAckBase {
		errs = multierror.Append(errs, fmt.Errorf("text ack base %d is below %d", o.TextAckBase, MinAckBase))
	}
	if o.FileAckBase < MinAckBase {
		errs = multierror.Append(errs, fmt.Errorf("file ack base %d is below %d", o.FileAckBase, MinAckBase))
	}
	if o.Sentinel == "" {
		errs = multierror.Append(errs, fmt.Errorf("sentinel must not be empty"))
	}
	return
}

// Cursor tracks a transfer's progress. It is owned and mutated only by its session.
type Cursor struct {
	// Chunk is the 1-based index of the current chunk, the data sequence.
	Chunk uint32

	// Segments counts the exchanged data segments.
	Segments uint64

	// Bytes counts the exchanged payload.
	Bytes uint64

	// EndOfStream is set after the source was exhausted resp. the peer's FIN.
	EndOfStream bool

	digest uint16
}

// advance the Cursor by one transferred payload.
func (c *Cursor) advance(payload []byte) {
	c.Segments++
	c.Bytes += uint64(len(payload))
	c.digest = crc16.Update(c.digest, crc16table, payload)
}

// Report summarizes a finished session.
type Report struct {
	// Segments is the amount of data segments, excluding control segments.
	Segments uint64
	Bytes    uint64

	// Duplicates counts retransmitted segments which were answered again.
	Duplicates uint64

	Retransmissions  uint64
	ChecksumFailures uint64

	// Digest is a CRC-16/CCITT over the transferred payload.
	Digest uint16

	Duration time.Duration

	Stats arq.Stats
}

func (r Report) String() string {
	return fmt.Sprintf("Report(segments=%d, bytes=%d, duplicates=%d, retx=%d, checksum=%d, digest=%#04x, duration=%v)",
		r.Segments, r.Bytes, r.Duplicates, r.Retransmissions, r.ChecksumFailures, r.Digest, r.Duration)
}

// LogFields for a structured log entry.
func (r Report) LogFields() log.Fields {
	return log.Fields{
		"segments":          r.Segments,
		"bytes":             r.Bytes,
		"duplicates":        r.Duplicates,
		"retransmissions":   r.Retransmissions,
		"checksum-failures": r.ChecksumFailures,
		"digest":            fmt.Sprintf("%#04x", r.Digest),
		"duration":          r.Duration,
	}
}

func newReport(c Conn, cursor Cursor, start time.Time) Report {
	stats := c.Stats()
	return Report{
		Segments:         cursor.Segments,
		Bytes:            cursor.Bytes,
		Duplicates:       c.Duplicates(),
		Retransmissions:  stats.Retransmissions,
		ChecksumFailures: stats.ChecksumFailures,
		Digest:           cursor.digest,
		Duration:         time.Since(start),
		Stats:            stats,
	}
}

// abort a session after a failure, releasing the Conn without a teardown.
func abort(c Conn, err error) error {
	if abortErr := c.Abort(); abortErr != nil {
		log.WithError(abortErr).Debug("Aborting the connection errored")
	}
	return err
}
