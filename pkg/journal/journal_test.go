// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package journal

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/swtp/swtp-go/pkg/session"
)

func setupJournal(t *testing.T) *Journal {
	dir, err := os.MkdirTemp("", "journal")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func TestJournal(t *testing.T) {
	j := setupJournal(t)

	start := time.Now().Add(-time.Hour)
	records := []Record{
		NewRecord("10.0.0.1:4000", "out-1", start, session.Report{Segments: 3, Bytes: 4000, Digest: 0xBEEF, Duration: time.Second}),
		NewRecord("10.0.0.2:4000", "out-2", start.Add(time.Minute), session.Report{Segments: 1, Bytes: 10, Duration: time.Second}),
		NewRecord("10.0.0.1:4000", "out-3", start.Add(2*time.Minute), session.Report{Segments: 0, Duration: time.Second}),
	}

	for _, r := range records {
		if err := j.Push(r); err != nil {
			t.Fatal(err)
		}
	}

	if r, err := j.Get(records[0].ID); err != nil {
		t.Fatal(err)
	} else if r.Output != "out-1" || r.Bytes != 4000 || r.Digest != 0xBEEF {
		t.Fatalf("unexpected Record %v", r)
	} else if !r.Finished.Equal(records[0].Finished) {
		t.Fatalf("finish time changed: %v != %v", r.Finished, records[0].Finished)
	}

	if rs, err := j.All(); err != nil {
		t.Fatal(err)
	} else if len(rs) != 3 || rs[0].Output != "out-1" || rs[2].Output != "out-3" {
		t.Fatalf("unexpected Records %v", rs)
	}

	if rs, err := j.QueryPeer("10.0.0.1:4000"); err != nil {
		t.Fatal(err)
	} else if len(rs) != 2 || rs[0].Output != "out-1" || rs[1].Output != "out-3" {
		t.Fatalf("unexpected Records %v", rs)
	}

	if rs, err := j.QuerySince(start.Add(30 * time.Second)); err != nil {
		t.Fatal(err)
	} else if len(rs) != 2 {
		t.Fatalf("expected two Records, got %v", rs)
	}

	if _, err := j.Get("unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJournalPushReplaces(t *testing.T) {
	j := setupJournal(t)

	r := NewRecord("peer", "out", time.Now(), session.Report{Bytes: 1})
	if err := j.Push(r); err != nil {
		t.Fatal(err)
	}

	r.Bytes = 2
	if err := j.Push(r); err != nil {
		t.Fatal(err)
	}

	if rs, err := j.All(); err != nil {
		t.Fatal(err)
	} else if len(rs) != 1 || rs[0].Bytes != 2 {
		t.Fatalf("unexpected Records %v", rs)
	}
}
