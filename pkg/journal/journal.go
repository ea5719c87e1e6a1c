// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package journal persists a Record of each completed inbound transfer.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/swtp/swtp-go/pkg/session"
)

const dirBadger string = "db"

// ErrNotFound is returned for unknown Record IDs.
var ErrNotFound = errors.New("record not found")

// Record of a completed transfer.
type Record struct {
	ID string

	Peer   string
	Output string

	Started  time.Time
	Finished time.Time

	Segments         uint64
	Bytes            uint64
	Duplicates       uint64
	Retransmissions  uint64
	ChecksumFailures uint64

	Digest uint16
}

// NewRecord from a session's Report. The ID is derived from the start time.
func NewRecord(peer, output string, started time.Time, report session.Report) Record {
	return Record{
		ID:               fmt.Sprintf("%s-%x", started.UTC().Format("20060102T150405"), started.UnixNano()),
		Peer:             peer,
		Output:           output,
		Started:          started,
		Finished:         started.Add(report.Duration),
		Segments:         report.Segments,
		Bytes:            report.Bytes,
		Duplicates:       report.Duplicates,
		Retransmissions:  report.Retransmissions,
		ChecksumFailures: report.ChecksumFailures,
		Digest:           report.Digest,
	}
}

func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Started.Before(rs[j].Started)
	})
}

// Journal of Records, backed by badgerhold.
type Journal struct {
	bh *badgerhold.Store
}

// Open creates a new Journal or opens an existing Journal from the given path.
func Open(dir string) (j *Journal, err error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<26 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		j = &Journal{bh: bh}
	}
	return
}

// Close the Journal. It must not be used afterwards.
func (j *Journal) Close() error {
	return j.bh.Close()
}

// Push a new Record. Known IDs are replaced.
func (j *Journal) Push(r Record) error {
	log.WithFields(log.Fields{
		"record": r.ID,
		"peer":   r.Peer,
		"bytes":  r.Bytes,
	}).Debug("Journal stores Record")

	return j.bh.Upsert(r.ID, r)
}

// Get the Record for an ID.
func (j *Journal) Get(id string) (r Record, err error) {
	err = j.bh.Get(id, &r)
	if errors.Is(err, badgerhold.ErrNotFound) {
		err = fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return
}

// All Records, oldest first.
func (j *Journal) All() (rs []Record, err error) {
	err = j.bh.Find(&rs, nil)
	sortRecords(rs)
	return
}

// QueryPeer fetches all Records of a peer, oldest first.
func (j *Journal) QueryPeer(peer string) (rs []Record, err error) {
	err = j.bh.Find(&rs, badgerhold.Where("Peer").Eq(peer))
	sortRecords(rs)
	return
}

// QuerySince fetches all Records finished after t, oldest first.
func (j *Journal) QuerySince(t time.Time) (rs []Record, err error) {
	err = j.bh.Find(&rs, badgerhold.Where("Finished").Gt(t))
	sortRecords(rs)
	return
}
