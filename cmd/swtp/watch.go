// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/config"
)

// partialSuffix marks files still being written into the spool directory.
const partialSuffix = ".part"

// sendFunc transfers the named file.
type sendFunc func(ctx context.Context, name string) error

// spool sends each file created in a directory.
type spool struct {
	directory  string
	knownFiles sync.Map
	watcher    *fsnotify.Watcher
	send       sendFunc
}

// newSpool watching a directory.
func newSpool(directory string, send sendFunc) (s *spool, err error) {
	s = &spool{
		directory: directory,
		send:      send,
	}

	if s.watcher, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	if err = s.watcher.Add(directory); err != nil {
		_ = s.watcher.Close()
		return nil, fmt.Errorf("adding directory to file watcher: %w", err)
	}
	return
}

// cleanFilepath creates a relative path from the spool directory to a new file's path.
func (s *spool) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(s.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Warn("Failed to clean file path")
		return f
	} else {
		return rel
	}
}

// skip files which are partial, hidden or already known.
func (s *spool) skip(name string) bool {
	rel := s.cleanFilepath(name)
	if strings.HasSuffix(rel, partialSuffix) || strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}

	_, known := s.knownFiles.Load(rel)
	return known
}

// handler dispatches fsnotify events until the context is done or the watcher fails.
func (s *spool) handler(ctx context.Context) error {
	defer func() {
		_ = s.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping spool directory watcher")
			return nil

		case e, ok := <-s.watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify's Event channel was closed")
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			if s.skip(e.Name) {
				log.WithField("file", e.Name).Debug("Skipping file")
				continue
			}

			s.knownFiles.Store(s.cleanFilepath(e.Name), struct{}{})
			s.sendNewFile(ctx, e.Name)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify's Errors channel was closed")
			}
			return fmt.Errorf("fsnotify errored: %w", err)
		}
	}
}

// sendNewFile with exponential backoff, as a new file might still be locked.
func (s *spool) sendNewFile(ctx context.Context, name string) {
	for i := 0; i < 5; i++ {
		err := s.send(ctx, name)
		if err == nil {
			return
		} else if ctx.Err() != nil {
			return
		}

		log.WithError(err).WithField("file", name).Warn("Sending file errored, retrying..")
		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", name).Error("Failed to send file, giving up.")
}

// startWatch for the "watch" CLI option.
func startWatch(ctx context.Context, conf config.Config, args []string) error {
	if len(args) != 2 {
		return errUsage
	}

	address, directory := args[0], args[1]

	s, err := newSpool(directory, func(ctx context.Context, name string) error {
		report, err := transferFile(ctx, conf, address, name)
		if err != nil {
			return err
		}

		log.WithFields(report.LogFields()).WithField("file", name).Info("Sent file")
		return nil
	})
	if err != nil {
		return err
	}

	return s.handler(ctx)
}
