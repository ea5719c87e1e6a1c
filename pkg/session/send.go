// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/segment"
)

// ErrShortSource is returned if a file source ends before its announced size.
var ErrShortSource = errors.New("source ended before its announced size")

// exchange one data chunk and advance the Cursor.
func exchange(ctx context.Context, c Conn, cursor *Cursor, ackBase uint32, payload []byte) error {
	cursor.Chunk++
	seg := segment.NewData(cursor.Chunk, ackBase+cursor.Chunk-1, payload)

	if _, err := c.Exchange(ctx, seg); err != nil {
		return fmt.Errorf("exchanging chunk %d: %w", cursor.Chunk, err)
	}

	cursor.advance(payload)
	return nil
}

// finish a sending session with the teardown.
func finish(ctx context.Context, c Conn, cursor Cursor, start time.Time) (Report, error) {
	if err := c.Close(ctx); err != nil {
		return Report{}, fmt.Errorf("teardown: %w", err)
	}

	report := newReport(c, cursor, start)
	log.WithFields(report.LogFields()).Info("Finished sending")
	return report, nil
}

// SendText reads lines from r and sends each, including its newline, until a
// line equals the sentinel or r is exhausted. A CRLF ending is sent as LF and
// a last line without newline is sent without one. Lines longer than a
// segment's payload are split. Afterwards, the Conn is closed.
func SendText(ctx context.Context, c Conn, r io.Reader, opts Options) (Report, error) {
	start := time.Now()
	cursor := Cursor{}
	br := bufio.NewReader(r)

	for !cursor.EndOfStream {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Report{}, abort(c, fmt.Errorf("reading text source: %w", err))
		} else if errors.Is(err, io.EOF) {
			cursor.EndOfStream = true
			if line == "" {
				break
			}
		}

		terminated := strings.HasSuffix(line, "\n")
		if terminated {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		}
		if line == opts.Sentinel {
			log.WithField("sentinel", opts.Sentinel).Debug("Text source reached sentinel")
			cursor.EndOfStream = true
			break
		}

		if terminated {
			line += "\n"
		}
		payload := []byte(line)
		for len(payload) > 0 {
			n := len(payload)
			if n > segment.MaxPayloadSize {
				n = segment.MaxPayloadSize
			}

			if err := exchange(ctx, c, &cursor, opts.TextAckBase, payload[:n]); err != nil {
				return Report{}, abort(c, err)
			}
			payload = payload[n:]
		}
	}

	return finish(ctx, c, cursor, start)
}

// ChunkCount returns the amount of segments needed for size octets.
func ChunkCount(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (size + segment.MaxPayloadSize - 1) / segment.MaxPayloadSize
}

// SendFile sends size octets from r in chunks of the maximum payload size.
// The data sequence is the chunk's 1-based index. A negative size sends until
// r is exhausted. Afterwards, the Conn is closed.
func SendFile(ctx context.Context, c Conn, r io.Reader, size int64, opts Options) (Report, error) {
	start := time.Now()
	cursor := Cursor{}

	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	br := bufio.NewReaderSize(r, 4*segment.MaxPayloadSize)

	logger := log.WithFields(log.Fields{
		"size":   size,
		"chunks": ChunkCount(size),
	})
	logger.Info("Starting file transfer")

	buf := make([]byte, segment.MaxPayloadSize)
	for !cursor.EndOfStream {
		n, err := io.ReadFull(br, buf)
		switch {
		case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
		case errors.Is(err, io.EOF):
			cursor.EndOfStream = true
			continue
		default:
			return Report{}, abort(c, fmt.Errorf("reading file source: %w", err))
		}

		if err := exchange(ctx, c, &cursor, opts.FileAckBase, buf[:n]); err != nil {
			return Report{}, abort(c, err)
		}

		if _, err := br.Peek(1); errors.Is(err, io.EOF) {
			cursor.EndOfStream = true
		} else if err != nil {
			return Report{}, abort(c, fmt.Errorf("reading file source: %w", err))
		}
	}

	if size >= 0 && int64(cursor.Bytes) != size {
		return Report{}, abort(c, fmt.Errorf("%w: %d of %d octets", ErrShortSource, cursor.Bytes, size))
	}

	return finish(ctx, c, cursor, start)
}
