// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/swtp/swtp-go/pkg/config"
	"github.com/swtp/swtp-go/pkg/discovery"
)

// discover for the "discover" CLI option.
func discover(conf config.Config, args []string) error {
	timeout := discoveryTimeout

	switch len(args) {
	case 0:
	case 1:
		var err error
		if timeout, err = time.ParseDuration(args[0]); err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
	default:
		return errUsage
	}

	responder, err := discovery.Find(timeout, conf.Discovery.IPv6)
	if err != nil {
		return fmt.Errorf("discovering: %w", err)
	}

	fmt.Printf("%s\t%s\n", responder.Address, responder.Announcement.Node)
	return nil
}
