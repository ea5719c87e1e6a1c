// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package segment

import (
	"encoding/binary"
)

// Checksum calculates the one's complement Internet checksum (RFC 1071) of a
// buffer.
//
// The buffer is summed up as big endian 16-bit words. Each carry out of the
// sixteenth bit is folded back into the sum immediately. A trailing odd octet
// is treated as the high octet of a last word, which equals padding the buffer
// with one zero octet. The complemented sum is returned.
//
// Running Checksum over a buffer which already contains its correct checksum
// results in zero, see Verify.
func Checksum(buf []byte) uint16 {
	var sum uint32

	i := 0
	for ; i+1 < len(buf); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(buf[i:]))
		if sum > 0xFFFF {
			sum = (sum & 0xFFFF) + 1
		}
	}

	if i < len(buf) {
		sum += uint32(buf[i]) << 8
		if sum > 0xFFFF {
			sum = (sum & 0xFFFF) + 1
		}
	}

	return ^uint16(sum)
}

// Verify checks a serialized segment, including its checksum field, against
// its checksum.
func Verify(buf []byte) bool {
	return Checksum(buf) == 0
}
