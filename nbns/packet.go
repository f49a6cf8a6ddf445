// Package nbns speaks just enough of the NetBIOS Name Service to ask a host
// for its machine name with a node status request.
package nbns

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	Port = 137

	headerLen     = 12
	encodedLen    = 32
	typeNBSTAT    = 0x0021
	classIN       = 0x0001
	flagResponse  = 0x8000
	nameEntryLen  = 18
	groupNameFlag = 0x8000
	// workstation service suffix
	suffixWorkstation = 0x00
)

var (
	ErrShortPacket = errors.New("nbns packet truncated")
	ErrNotResponse = errors.New("nbns packet is not a node status response")
	ErrNoName      = errors.New("nbns response carries no usable name")
)

// NodeStatusRequest builds the wildcard node status query with id.
func NodeStatusRequest(id uint16) []byte {
	b := make([]byte, headerLen, headerLen+1+encodedLen+1+4)
	binary.BigEndian.PutUint16(b[0:], id)
	// flags 0, one question
	binary.BigEndian.PutUint16(b[4:], 1)
	b = append(b, encodedLen)
	b = append(b, EncodeName("*", 0x00)...)
	b = append(b, 0x00)
	b = binary.BigEndian.AppendUint16(b, typeNBSTAT)
	b = binary.BigEndian.AppendUint16(b, classIN)
	return b
}

// EncodeName applies first level encoding (RFC 1002 4.1) to name padded to
// 15 bytes plus suffix. The wildcard "*" is padded with NULs.
func EncodeName(name string, suffix byte) []byte {
	var raw [16]byte
	pad := byte(' ')
	if name == "*" {
		pad = 0
	}
	for i := range raw {
		raw[i] = pad
	}
	copy(raw[:15], strings.ToUpper(name))
	raw[15] = suffix
	if name == "*" {
		raw[15] = 0
	}

	out := make([]byte, encodedLen)
	for i, c := range raw {
		out[i*2] = 'A' + c>>4
		out[i*2+1] = 'A' + c&0x0f
	}
	return out
}

// NameEntry is one row of a node status name table.
type NameEntry struct {
	Name   string
	Suffix byte
	Group  bool
}

// ParseNodeStatus decodes a node status response and returns its name
// table.
func ParseNodeStatus(b []byte) (uint16, []NameEntry, error) {
	if len(b) < headerLen {
		return 0, nil, ErrShortPacket
	}
	id := binary.BigEndian.Uint16(b[0:])
	flags := binary.BigEndian.Uint16(b[2:])
	qd := binary.BigEndian.Uint16(b[4:])
	an := binary.BigEndian.Uint16(b[6:])
	if flags&flagResponse == 0 || an == 0 {
		return id, nil, ErrNotResponse
	}

	off := headerLen
	var err error
	for i := 0; i < int(qd); i++ {
		if off, err = skipName(b, off); err != nil {
			return id, nil, err
		}
		off += 4
	}
	if off, err = skipName(b, off); err != nil {
		return id, nil, err
	}
	if off+10 > len(b) {
		return id, nil, ErrShortPacket
	}
	rrType := binary.BigEndian.Uint16(b[off:])
	if rrType != typeNBSTAT {
		return id, nil, fmt.Errorf("%w: record type %#04x", ErrNotResponse, rrType)
	}
	rdLen := int(binary.BigEndian.Uint16(b[off+8:]))
	off += 10
	if off+rdLen > len(b) || rdLen < 1 {
		return id, nil, ErrShortPacket
	}
	rdata := b[off : off+rdLen]

	count := int(rdata[0])
	entries := make([]NameEntry, 0, count)
	for i, pos := 0, 1; i < count && pos+nameEntryLen <= len(rdata); i, pos = i+1, pos+nameEntryLen {
		e := rdata[pos : pos+nameEntryLen]
		entries = append(entries, NameEntry{
			Name:   printable(e[:15]),
			Suffix: e[15],
			Group:  binary.BigEndian.Uint16(e[16:])&groupNameFlag != 0,
		})
	}
	return id, entries, nil
}

// MachineName picks the unique workstation name from a name table, falling
// back to the first non-empty name.
func MachineName(entries []NameEntry) (string, error) {
	fallback := ""
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		if e.Suffix == suffixWorkstation && !e.Group {
			return e.Name, nil
		}
		if fallback == "" {
			fallback = e.Name
		}
	}
	if fallback == "" {
		return "", ErrNoName
	}
	return fallback, nil
}

// skipName steps over a length-prefixed or compressed name at off.
func skipName(b []byte, off int) (int, error) {
	for {
		if off >= len(b) {
			return 0, ErrShortPacket
		}
		l := int(b[off])
		switch {
		case l == 0:
			return off + 1, nil
		case l&0xc0 == 0xc0:
			if off+2 > len(b) {
				return 0, ErrShortPacket
			}
			return off + 2, nil
		default:
			off += 1 + l
		}
	}
}

// printable keeps the printable ASCII of a raw name and trims the padding.
// Control bytes never reach the table or its renderings.
func printable(raw []byte) string {
	var sb strings.Builder
	for _, c := range raw {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}
