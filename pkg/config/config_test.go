// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/fault"
)

const exampleConfig = `
[logging]
level = "debug"
report-caller = false
format = "json"

[transport]
timeout = "50ms"
max-attempts = 20
max-elapsed = "30s"
linger = "1s"

[fault]
send = "corrupt:20:200"
receive = "drop:10"

[responder]
listen = ":5000"
output-dir = "/tmp/swtp"

[journal]
dir = "/var/lib/swtp"

[status]
listen = "127.0.0.1:8080"

[discovery]
ipv4 = true
interval = "5s"

[session]
text-ack-base = 40
sentinel = "quit"
`

func TestParse(t *testing.T) {
	c, err := Parse(exampleConfig)
	if err != nil {
		t.Fatal(err)
	}

	cc, err := c.ConnConfig()
	if err != nil {
		t.Fatal(err)
	}

	if cc.ARQ.Timeout != 50*time.Millisecond || cc.Linger != time.Second {
		t.Fatalf("unexpected durations: %v, %v", cc.ARQ.Timeout, cc.Linger)
	}
	if cc.ARQ.Retry != (arq.Retry{MaxAttempts: 20, MaxElapsed: 30 * time.Second}) {
		t.Fatalf("unexpected retry %v", cc.ARQ.Retry)
	}
	if cc.ARQ.SendFault != fault.Corrupt(20, 200) || cc.ARQ.ReceiveFault != fault.Drop(10) {
		t.Fatalf("unexpected faults: %v, %v", cc.ARQ.SendFault, cc.ARQ.ReceiveFault)
	}

	if c.Responder.Listen != ":5000" || c.Responder.Node != "swtpd" {
		t.Fatalf("unexpected responder block %v", c.Responder)
	}

	opts := c.SessionOptions()
	if opts.TextAckBase != 40 || opts.FileAckBase != 1000 || opts.Sentinel != "quit" {
		t.Fatalf("unexpected session options %v", opts)
	}

	if d, err := c.DiscoveryInterval(); err != nil || d != 5*time.Second {
		t.Fatalf("unexpected discovery interval %v, %v", d, err)
	}
}

func TestDefault(t *testing.T) {
	c, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}

	cc, err := c.ConnConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cc.ARQ.Timeout != arq.DefaultTimeout || !cc.ARQ.Retry.Unbounded() {
		t.Fatalf("unexpected ARQ config %v", cc.ARQ)
	}
	if cc.ARQ.SendFault.Kind != fault.None || cc.ARQ.ReceiveFault.Kind != fault.None {
		t.Fatal("default config injects faults")
	}
	if d, _ := c.DiscoveryInterval(); d != 10*time.Second {
		t.Fatalf("unexpected discovery interval %v", d)
	}
}

func TestCheckValid(t *testing.T) {
	invalid := `
[logging]
level = "loud"
format = "xml"

[transport]
timeout = "fast"
max-attempts = -1

[fault]
send = "corrupt:20:30"

[session]
sentinel = ""
`

	_, err := Parse(invalid)
	if err == nil {
		t.Fatal("invalid config was accepted")
	}

	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected a multierror, got %T: %v", err, err)
	}
	// level, format, timeout, max-attempts, fault.send and sentinel
	if n := len(merr.WrappedErrors()); n != 6 {
		t.Fatalf("expected 6 errors, got %d: %v", n, err)
	}
}

func TestLoad(t *testing.T) {
	dir, err := os.MkdirTemp("", "config")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "swtp.toml")
	if err := os.WriteFile(filename, []byte(exampleConfig), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status.Listen != "127.0.0.1:8080" || c.Journal.Dir != "/var/lib/swtp" {
		t.Fatalf("unexpected config %v", c)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("missing file was loaded")
	}
}

func TestLogConfApply(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	LogConf{Level: "trace", Format: "json"}.Apply()

	if log.GetLevel() != log.TraceLevel {
		t.Fatalf("level is %v", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("formatter is %T", log.StandardLogger().Formatter)
	}
}

func TestStatusRequiresJournal(t *testing.T) {
	if _, err := Parse("[status]\nlisten = \":8080\"\n"); err == nil {
		t.Fatal("status API without a journal was accepted")
	}
}

func TestAckBaseOutsideHandshake(t *testing.T) {
	tests := []string{
		"[session]\nfile-ack-base = 1\n",
		"[session]\ntext-ack-base = 1\n",
		"[session]\ntext-ack-base = 0\n",
	}

	for _, data := range tests {
		if _, err := Parse(data); err == nil {
			t.Fatalf("accepted %q", data)
		}
	}

	if _, err := Parse("[session]\nfile-ack-base = 2\ntext-ack-base = 2\n"); err != nil {
		t.Fatal(err)
	}
}
