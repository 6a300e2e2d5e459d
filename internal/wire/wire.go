// Package wire encodes snapshots into the agent's datagram payload:
// "<memory_bytes> <disk_megabytes> <hardware_addr>" in ASCII, separated by
// single spaces with no trailing delimiter.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bc-dunia/hoststat/internal/probe"
)

// ErrMalformed is returned by Decode for payloads that are not three valid
// fields.
var ErrMalformed = errors.New("malformed payload")

// Encode renders s as a payload. An empty hardware address is encoded as
// probe.UnspecifiedHardwareAddr so the payload always has three fields.
func Encode(s probe.Snapshot) []byte {
	hw := s.HardwareAddr
	if hw == "" {
		hw = probe.UnspecifiedHardwareAddr
	}

	b := make([]byte, 0, 48)
	b = strconv.AppendUint(b, s.MemoryUsedBytes, 10)
	b = append(b, ' ')
	b = strconv.AppendUint(b, s.DiskUsedMegabytes, 10)
	b = append(b, ' ')
	b = append(b, hw...)
	return b
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (probe.Snapshot, error) {
	fields := strings.Fields(string(payload))
	if len(fields) != 3 {
		return probe.Snapshot{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformed, len(fields))
	}

	mem, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return probe.Snapshot{}, fmt.Errorf("%w: memory: %v", ErrMalformed, err)
	}
	disk, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return probe.Snapshot{}, fmt.Errorf("%w: disk: %v", ErrMalformed, err)
	}
	if !isHex(fields[2]) {
		return probe.Snapshot{}, fmt.Errorf("%w: hardware address %q is not hex", ErrMalformed, fields[2])
	}

	return probe.Snapshot{
		MemoryUsedBytes:   mem,
		DiskUsedMegabytes: disk,
		HardwareAddr:      strings.ToLower(fields[2]),
	}, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
