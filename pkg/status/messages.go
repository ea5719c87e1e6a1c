// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package status

import (
	"fmt"
	"time"

	"github.com/swtp/swtp-go/pkg/journal"
)

// Transfer describes a journal.Record in JSON.
type Transfer struct {
	ID               string    `json:"id"`
	Peer             string    `json:"peer"`
	Output           string    `json:"output"`
	Started          time.Time `json:"started"`
	Finished         time.Time `json:"finished"`
	Segments         uint64    `json:"segments"`
	Bytes            uint64    `json:"bytes"`
	Duplicates       uint64    `json:"duplicates"`
	Retransmissions  uint64    `json:"retransmissions"`
	ChecksumFailures uint64    `json:"checksum_failures"`
	Digest           string    `json:"digest"`
}

func newTransfer(r journal.Record) Transfer {
	return Transfer{
		ID:               r.ID,
		Peer:             r.Peer,
		Output:           r.Output,
		Started:          r.Started,
		Finished:         r.Finished,
		Segments:         r.Segments,
		Bytes:            r.Bytes,
		Duplicates:       r.Duplicates,
		Retransmissions:  r.Retransmissions,
		ChecksumFailures: r.ChecksumFailures,
		Digest:           fmt.Sprintf("%04x", r.Digest),
	}
}

// TransfersResponse is the answer to GET /transfers.
type TransfersResponse struct {
	Error     string     `json:"error"`
	Transfers []Transfer `json:"transfers"`
}

// TransferResponse is the answer to GET /transfers/{id}.
type TransferResponse struct {
	Error    string    `json:"error"`
	Transfer *Transfer `json:"transfer,omitempty"`
}
