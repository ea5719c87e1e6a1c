// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config reads the TOML configuration shared by swtpd and swtp.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/conn"
	"github.com/swtp/swtp-go/pkg/fault"
	"github.com/swtp/swtp-go/pkg/session"
)

// Config describes the TOML configuration.
type Config struct {
	Logging   LogConf
	Transport TransportConf
	Fault     FaultConf
	Responder ResponderConf
	Journal   JournalConf
	Status    StatusConf
	Discovery DiscoveryConf
	Session   SessionConf
}

// LogConf describes the Logging configuration block.
type LogConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// TransportConf describes the ARQ and connection configuration block.
// Durations are strings like "100ms".
type TransportConf struct {
	Timeout     string
	MaxAttempts int    `toml:"max-attempts"`
	MaxElapsed  string `toml:"max-elapsed"`
	Linger      string
}

// FaultConf describes the fault injection block, e.g., "drop:10" or "corrupt:20:200".
type FaultConf struct {
	Send    string
	Receive string
}

// ResponderConf describes swtpd's responder block.
type ResponderConf struct {
	Listen    string
	OutputDir string `toml:"output-dir"`
	Node      string
}

// JournalConf describes the transfer journal block. An empty Dir disables the journal.
type JournalConf struct {
	Dir string
}

// StatusConf describes the status API block. An empty Listen disables the API.
type StatusConf struct {
	Listen string
}

// DiscoveryConf describes the multicast discovery block.
type DiscoveryConf struct {
	IPv4     bool
	IPv6     bool
	Interval string
}

// SessionConf describes the bulk transfer block.
type SessionConf struct {
	TextAckBase uint32 `toml:"text-ack-base"`
	FileAckBase uint32 `toml:"file-ack-base"`
	Sentinel    string
}

// Default Config, used for each unset value.
func Default() Config {
	return Config{
		Logging: LogConf{
			Level:  "info",
			Format: "text",
		},
		Transport: TransportConf{
			Timeout: arq.DefaultTimeout.String(),
		},
		Fault: FaultConf{
			Send:    "none",
			Receive: "none",
		},
		Responder: ResponderConf{
			Listen:    ":4000",
			OutputDir: ".",
			Node:      "swtpd",
		},
		Discovery: DiscoveryConf{
			Interval: "10s",
		},
		Session: SessionConf{
			TextAckBase: session.DefaultTextAckBase,
			FileAckBase: session.DefaultFileAckBase,
			Sentinel:    session.DefaultSentinel,
		},
	}
}

// Load a TOML file on top of the Default Config and validate it.
func Load(filename string) (c Config, err error) {
	c = Default()
	if _, err = toml.DecodeFile(filename, &c); err != nil {
		return
	}

	err = c.CheckValid()
	return
}

// Parse TOML data on top of the Default Config and validate it.
func Parse(data string) (c Config, err error) {
	c = Default()
	if _, err = toml.Decode(data, &c); err != nil {
		return
	}

	err = c.CheckValid()
	return
}

// parseDuration treats an empty string as zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// CheckValid returns an error describing every problem of this Config.
func (c Config) CheckValid() (errs error) {
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = multierror.Append(errs, err)
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		errs = multierror.Append(errs, fmt.Errorf("logging.format %q is neither text nor json", f))
	}

	if _, err := c.ConnConfig(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if _, err := c.DiscoveryInterval(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if c.Status.Listen != "" && c.Journal.Dir == "" {
		errs = multierror.Append(errs, fmt.Errorf("status.listen requires a journal.dir"))
	}

	if err := c.SessionOptions().CheckValid(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("session: %w", err))
	}

	return
}

// ConnConfig creates the connection configuration from the transport and fault blocks.
func (c Config) ConnConfig() (cc conn.Config, errs error) {
	var err error

	if cc.ARQ.Timeout, err = parseDuration(c.Transport.Timeout); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("transport.timeout: %w", err))
	} else if cc.ARQ.Timeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("transport.timeout must be positive"))
	}

	if c.Transport.MaxAttempts < 0 {
		errs = multierror.Append(errs, fmt.Errorf("transport.max-attempts must not be negative"))
	}
	cc.ARQ.Retry.MaxAttempts = c.Transport.MaxAttempts

	if cc.ARQ.Retry.MaxElapsed, err = parseDuration(c.Transport.MaxElapsed); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("transport.max-elapsed: %w", err))
	}

	if cc.Linger, err = parseDuration(c.Transport.Linger); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("transport.linger: %w", err))
	}

	if cc.ARQ.SendFault, err = fault.ParsePolicy(c.Fault.Send); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("fault.send: %w", err))
	}
	if cc.ARQ.ReceiveFault, err = fault.ParsePolicy(c.Fault.Receive); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("fault.receive: %w", err))
	}

	return
}

// SessionOptions from the session block.
func (c Config) SessionOptions() session.Options {
	return session.Options{
		TextAckBase: c.Session.TextAckBase,
		FileAckBase: c.Session.FileAckBase,
		Sentinel:    c.Session.Sentinel,
	}
}

// DiscoveryInterval between two announcements, ten seconds by default.
func (c Config) DiscoveryInterval() (time.Duration, error) {
	d, err := parseDuration(c.Discovery.Interval)
	if err != nil {
		return 0, fmt.Errorf("discovery.interval: %w", err)
	} else if d == 0 {
		d = 10 * time.Second
	}
	return d, nil
}
