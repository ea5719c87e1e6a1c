// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ParseLevel of logrus; an empty string results in info.
func ParseLevel(level string) (log.Level, error) {
	if level == "" {
		return log.InfoLevel, nil
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("logging.level %q is not one of panic,fatal,error,warn,info,debug,trace", level)
	}
	return lvl, nil
}

// Apply this LogConf to logrus' standard logger.
func (lc LogConf) Apply() {
	if lvl, err := ParseLevel(lc.Level); err != nil {
		log.WithFields(log.Fields{
			"level":    lc.Level,
			"error":    err,
			"provided": "panic,fatal,error,warn,info,debug,trace",
		}).Warn("Failed to set log level. Please select one of the provided ones")
	} else {
		log.SetLevel(lvl)
	}

	log.SetReportCaller(lc.ReportCaller)

	switch lc.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}
