// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package targets builds the list of addresses a refresh cycle probes.
package targets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"sort"

	"github.com/willf/bitset"
)

// maxRange caps how many addresses one range may span (a /16).
const maxRange = 1 << 16

// Range is an inclusive span of IPv4 addresses.
type Range struct {
	Start netip.Addr
	End   netip.Addr
}

// ParseRange validates a start and end address pair.
func ParseRange(start, end string) (Range, error) {
	s, err := netip.ParseAddr(start)
	if err != nil || !s.Is4() {
		return Range{}, fmt.Errorf("invalid IPv4 address: %v", start)
	}
	e, err := netip.ParseAddr(end)
	if err != nil || !e.Is4() {
		return Range{}, fmt.Errorf("invalid IPv4 address: %v", end)
	}
	r := Range{Start: s, End: e}
	if u32(s) > u32(e) {
		return Range{}, errors.New("start of IP range has to be lower than the end of an IP range")
	}
	if r.Size() > maxRange {
		return Range{}, fmt.Errorf("range %s spans %d addresses, limit is %d", r, r.Size(), maxRange)
	}
	return r, nil
}

// FromPrefix returns the host addresses of an IPv4 prefix, leaving out the
// network and broadcast addresses when the prefix has room for them.
func FromPrefix(p netip.Prefix) (Range, error) {
	if !p.Addr().Is4() {
		return Range{}, fmt.Errorf("prefix %s is not IPv4", p)
	}
	p = p.Masked()
	if p.Bits() < 16 {
		return Range{}, fmt.Errorf("prefix %s is wider than /16", p)
	}
	first := u32(p.Addr())
	last := first | (1<<(32-p.Bits()) - 1)
	if p.Bits() <= 30 {
		first++
		last--
	}
	return Range{Start: addr(first), End: addr(last)}, nil
}

func (r Range) Size() int {
	if !r.Start.IsValid() || !r.End.IsValid() {
		return 0
	}
	return int(u32(r.End)-u32(r.Start)) + 1
}

func (r Range) Contains(ip netip.Addr) bool {
	if !ip.Is4() || r.Size() == 0 {
		return false
	}
	n := u32(ip)
	return n >= u32(r.Start) && n <= u32(r.End)
}

func (r Range) String() string {
	if r.Size() == 0 {
		return "no range"
	}
	return r.Start.String() + "-" + r.End.String()
}

// Set is a deduplicated collection of probe targets. Addresses inside the
// base range are kept in a bitset, anything else in a small map.
type Set struct {
	base    Range
	bits    *bitset.BitSet
	extra   map[netip.Addr]struct{}
	exclude map[netip.Addr]struct{}
}

// NewSet returns an empty set indexed over base.
func NewSet(base Range) *Set {
	return &Set{
		base:    base,
		bits:    bitset.New(uint(base.Size())),
		extra:   make(map[netip.Addr]struct{}),
		exclude: make(map[netip.Addr]struct{}),
	}
}

// AddRange adds every address of the base range.
func (s *Set) AddRange() {
	for i := 0; i < s.base.Size(); i++ {
		s.bits.Set(uint(i))
	}
}

func (s *Set) Add(ip netip.Addr) {
	if !ip.Is4() {
		return
	}
	if s.base.Contains(ip) {
		s.bits.Set(s.offset(ip))
		return
	}
	s.extra[ip] = struct{}{}
}

// Exclude keeps ip out of the set regardless of later Adds.
func (s *Set) Exclude(ip netip.Addr) {
	s.exclude[ip] = struct{}{}
}

func (s *Set) Len() int {
	return len(s.List())
}

// List returns the targets in ascending order.
func (s *Set) List() []netip.Addr {
	out := make([]netip.Addr, 0, int(s.bits.Count())+len(s.extra))
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		ip := addr(u32(s.base.Start) + uint32(i))
		if _, skip := s.exclude[ip]; !skip {
			out = append(out, ip)
		}
	}
	for ip := range s.extra {
		if _, skip := s.exclude[ip]; !skip {
			out = append(out, ip)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Split cuts ips into at most n batches of near equal size.
func Split(ips []netip.Addr, n int) [][]netip.Addr {
	if n < 1 {
		n = 1
	}
	if len(ips) == 0 {
		return nil
	}
	if n > len(ips) {
		n = len(ips)
	}
	batches := make([][]netip.Addr, 0, n)
	size, rem := len(ips)/n, len(ips)%n
	for i, start := 0, 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		batches = append(batches, ips[start:end])
		start = end
	}
	return batches
}

func (s *Set) offset(ip netip.Addr) uint {
	return uint(u32(ip) - u32(s.base.Start))
}

func u32(ip netip.Addr) uint32 {
	b := ip.As4()
	return binary.BigEndian.Uint32(b[:])
}

func addr(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b)
}
