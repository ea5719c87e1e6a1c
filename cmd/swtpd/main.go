// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// swtpd is the responder daemon, storing every inbound transfer as a file.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/swtp/swtp-go/pkg/config"
	"github.com/swtp/swtp-go/pkg/status"
	"github.com/swtp/swtp-go/pkg/transport"
)

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalSyn := make(chan os.Signal, 1)
	signalAck := make(chan struct{})

	signal.Notify(signalSyn, os.Interrupt)

	go func() {
		<-signalSyn
		close(signalAck)
	}()

	<-signalAck
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, err := config.Load(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("Failed to parse config")
	}
	conf.Logging.Apply()

	t, err := transport.ListenUDP(conf.Responder.Listen)
	if err != nil {
		log.WithError(err).WithField("listen", conf.Responder.Listen).Fatal("Failed to bind UDP socket")
	}

	d, err := newDaemon(conf, t)
	if err != nil {
		log.WithError(err).Fatal("Failed to start responder")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.serve(gCtx)
	})

	if conf.Status.Listen != "" {
		server := &http.Server{
			Addr:              conf.Status.Listen,
			Handler:           status.NewServer(d.journal, d.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.WithField("listen", server.Addr).Info("Starting status API")
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	go func() {
		waitSigint()
		log.Info("Shutting down..")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Responder failed")
	}
	cancel()

	if err := d.Close(); err != nil {
		log.WithError(err).Warn("Closing responder errored")
	}
}
