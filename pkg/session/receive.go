// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/segment"
)

// Receive writes each accepted payload into w and acknowledges it afterwards.
// On the peer's FIN, w is flushed and the Conn is closed passively.
func Receive(ctx context.Context, c Conn, w io.Writer) (Report, error) {
	start := time.Now()
	cursor := Cursor{}
	bw := bufio.NewWriter(w)

	for !cursor.EndOfStream {
		seg, err := c.Next(ctx)
		if err != nil {
			return Report{}, abort(c, fmt.Errorf("receiving: %w", err))
		}

		if len(seg.Payload) > 0 {
			if _, err := bw.Write(seg.Payload); err != nil {
				return Report{}, abort(c, fmt.Errorf("writing sink: %w", err))
			}

			cursor.Chunk = seg.DataSequence
			cursor.advance(seg.Payload)

			log.WithField("segment", seg).Trace("Received payload")
		}

		if seg.Flags.Has(segment.FlagFin) {
			cursor.EndOfStream = true

			if err := bw.Flush(); err != nil {
				return Report{}, abort(c, fmt.Errorf("flushing sink: %w", err))
			}
		}

		if err := c.Acknowledge(seg); err != nil {
			return Report{}, abort(c, fmt.Errorf("acknowledging: %w", err))
		}
	}

	if err := c.Close(ctx); err != nil {
		return Report{}, fmt.Errorf("teardown: %w", err)
	}

	report := newReport(c, cursor, start)
	log.WithFields(report.LogFields()).Info("Finished receiving")
	return report, nil
}
