// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery announces responders through UDP multicast packages and
// lets initiators find them without a configured address.
package discovery

const (
	// address4 is the default multicast IPv4 address used for discovery.
	address4 = "224.23.23.42"

	// address6 is the default multicast IPv6 address used for discovery.
	address6 = "ff02::2342"

	// port is the default multicast UDP port used for discovery.
	port = 35042
)

// query is an initiator's payload, a CBOR null, which is no Announcement.
var query = []byte{0xf6}
