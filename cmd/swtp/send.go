// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/swtp/swtp-go/pkg/config"
	"github.com/swtp/swtp-go/pkg/session"
)

// openSource returns the stdin for "-" with an unknown size, or the named file and its size.
func openSource(name string) (io.ReadCloser, int64, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), -1, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// transferFile from the named source, "-" for the stdin, to a responder.
func transferFile(ctx context.Context, conf config.Config, address, name string) (report session.Report, err error) {
	src, size, err := openSource(name)
	if err != nil {
		return report, fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	c, err := dial(ctx, address, conf)
	if err != nil {
		return report, fmt.Errorf("connecting: %w", err)
	}

	if report, err = session.SendFile(ctx, c, src, size, conf.SessionOptions()); err != nil {
		err = fmt.Errorf("sending file: %w", err)
	}
	return
}

// sendFile for the "send-file" CLI option.
func sendFile(ctx context.Context, conf config.Config, args []string) error {
	if len(args) != 2 {
		return errUsage
	}

	report, err := transferFile(ctx, conf, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Println(report)
	return nil
}

// sendText for the "send-text" CLI option.
func sendText(ctx context.Context, conf config.Config, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	c, err := dial(ctx, args[0], conf)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	report, err := session.SendText(ctx, c, os.Stdin, conf.SessionOptions())
	if err != nil {
		return fmt.Errorf("sending text: %w", err)
	}

	fmt.Println(report)
	return nil
}
