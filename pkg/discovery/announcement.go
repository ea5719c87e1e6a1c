// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// announcementVersion is the first field of each serialized Announcement.
const announcementVersion = 1

// Announcement of some responder.
type Announcement struct {
	// Node is a human readable name of the responder.
	Node string

	// Port is the responder's UDP port; its address is the announcement's source.
	Port uint
}

// Bytes of the Announcement's CBOR representation, the payload of a discovery package.
func (announcement Announcement) Bytes() ([]byte, error) {
	buff := new(bytes.Buffer)
	if err := cboring.Marshal(&announcement, buff); err != nil {
		return nil, fmt.Errorf("marshalling %v failed: %w", announcement, err)
	}
	return buff.Bytes(), nil
}

// ParseAnnouncement from a discovery package's payload. Trailing octets are rejected.
func ParseAnnouncement(data []byte) (announcement Announcement, err error) {
	buff := bytes.NewBuffer(data)
	if err = cboring.Unmarshal(&announcement, buff); err != nil {
		return
	}

	if buff.Len() != 0 {
		err = fmt.Errorf("%d trailing octets after %v", buff.Len(), announcement)
	}
	return
}

// MarshalCbor creates a CBOR representation for an Announcement.
func (announcement *Announcement) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(announcementVersion, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(announcement.Node, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(announcement.Port), w); err != nil {
		return err
	}

	return nil
}

// UnmarshalCbor creates an Announcement from its CBOR representation.
func (announcement *Announcement) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 3 {
		return fmt.Errorf("wrong array length: %d instead of 3", l)
	}

	if v, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if v != announcementVersion {
		return fmt.Errorf("unsupported announcement version %d", v)
	}

	if m, n, err := cboring.ReadMajors(r); err != nil {
		return err
	} else if m != cboring.TextString {
		return fmt.Errorf("wrong major type 0x%X for the node name", m)
	} else if node, err := cboring.ReadRawBytes(n, r); err != nil {
		return err
	} else {
		announcement.Node = string(node)
	}

	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if n == 0 || n > 65535 {
		return fmt.Errorf("invalid port %d", n)
	} else {
		announcement.Port = uint(n)
	}

	return nil
}

func (announcement Announcement) String() string {
	return fmt.Sprintf("Announcement(%s,%d)", announcement.Node, announcement.Port)
}
