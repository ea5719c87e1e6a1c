// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// swtp is the initiator CLI, sending text, files or a spool directory to a responder.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/config"
	"github.com/swtp/swtp-go/pkg/conn"
	"github.com/swtp/swtp-go/pkg/discovery"
)

// autoAddress lets the responder be discovered instead of addressed.
const autoAddress = "auto"

// discoveryTimeout bounds the search for a responder.
const discoveryTimeout = 5 * time.Second

// printUsage of swtp and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s send-file|send-text|watch|discover:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s send-file address -|filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends the stdin (-) or the given file to the responder at address.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s send-text address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends the stdin's lines until the sentinel line, \"end\" by default.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s watch address directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends every file newly created in the directory, each over its own connection.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s discover [timeout]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the first responder announcing itself by multicast.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "An address of %q discovers the responder. A configuration file can be\n", autoAddress)
	_, _ = fmt.Fprintf(os.Stderr, "set by the SWTP_CONFIG environment variable.\n")

	os.Exit(1)
}

// errUsage is returned by subcommands called with wrong arguments.
var errUsage = errors.New("wrong arguments")

// printFatal of an error and exit with an error code afterwards.
func printFatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
	os.Exit(1)
}

// loadConfig from SWTP_CONFIG or the defaults.
func loadConfig() (config.Config, error) {
	conf := config.Default()

	if filename := os.Getenv("SWTP_CONFIG"); filename != "" {
		var err error
		if conf, err = config.Load(filename); err != nil {
			return conf, fmt.Errorf("loading configuration: %w", err)
		}
	}

	conf.Logging.Apply()
	return conf, nil
}

// resolveAddress of a responder, discovering it for autoAddress.
func resolveAddress(address string, conf config.Config) (string, error) {
	if address != autoAddress {
		return address, nil
	}

	responder, err := discovery.Find(discoveryTimeout, conf.Discovery.IPv6)
	if err != nil {
		return "", err
	}
	return responder.Address, nil
}

// dial a responder over UDP.
func dial(ctx context.Context, address string, conf config.Config) (*conn.Conn, error) {
	address, err := resolveAddress(address, conf)
	if err != nil {
		return nil, err
	}

	connConfig, err := conf.ConnConfig()
	if err != nil {
		return nil, err
	}

	log.WithField("address", address).Debug("Dialing responder")
	return conn.DialUDP(ctx, address, connConfig)
}

// run a subcommand until it finishes or the context is cancelled.
func run(ctx context.Context, cmd string, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	switch cmd {
	case "send-file":
		return sendFile(ctx, conf, args)

	case "send-text":
		return sendText(ctx, conf, args)

	case "watch":
		return startWatch(ctx, conf, args)

	case "discover":
		return discover(conf, args)

	default:
		return errUsage
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1], os.Args[2:])
	stop()

	if errors.Is(err, errUsage) {
		printUsage()
	} else if err != nil {
		printFatal(err)
	}
}
