package targets

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange("192.168.0.1", "192.168.0.254")
	require.NoError(t, err)
	assert.Equal(t, 254, r.Size())
	assert.True(t, r.Contains(netip.MustParseAddr("192.168.0.100")))
	assert.False(t, r.Contains(netip.MustParseAddr("192.168.1.1")))
	assert.Equal(t, "192.168.0.1-192.168.0.254", r.String())

	_, err = ParseRange("192.168.0.254", "192.168.0.1")
	assert.Error(t, err)
	_, err = ParseRange("fe80::1", "192.168.0.1")
	assert.Error(t, err)
	_, err = ParseRange("10.0.0.0", "10.255.255.255")
	assert.Error(t, err)
}

func TestFromPrefix(t *testing.T) {
	r, err := FromPrefix(netip.MustParsePrefix("192.168.1.77/24"))
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), r.Start)
	assert.Equal(t, netip.MustParseAddr("192.168.1.254"), r.End)

	r, err = FromPrefix(netip.MustParsePrefix("10.0.0.4/31"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Size())

	_, err = FromPrefix(netip.MustParsePrefix("10.0.0.0/8"))
	assert.Error(t, err)
}

func TestSetDedupes(t *testing.T) {
	r, err := ParseRange("10.0.0.1", "10.0.0.8")
	require.NoError(t, err)
	s := NewSet(r)
	s.AddRange()
	s.Add(netip.MustParseAddr("10.0.0.3"))
	s.Add(netip.MustParseAddr("172.16.0.9"))
	s.Add(netip.MustParseAddr("172.16.0.9"))
	s.Exclude(netip.MustParseAddr("10.0.0.1"))

	list := s.List()
	require.Len(t, list, 8)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), list[0])
	assert.Equal(t, netip.MustParseAddr("172.16.0.9"), list[7])
}

func TestSetTableOnly(t *testing.T) {
	r, err := ParseRange("10.0.0.1", "10.0.0.254")
	require.NoError(t, err)
	s := NewSet(r)
	s.Add(netip.MustParseAddr("10.0.0.20"))
	s.Add(netip.MustParseAddr("10.0.0.10"))
	s.Add(netip.MustParseAddr("fe80::1"))

	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("10.0.0.10"),
		netip.MustParseAddr("10.0.0.20"),
	}, s.List())
	assert.Equal(t, 2, s.Len())
}

func TestSplit(t *testing.T) {
	var ips []netip.Addr
	for i := 1; i <= 10; i++ {
		ips = append(ips, netip.AddrFrom4([4]byte{10, 0, 0, byte(i)}))
	}

	batches := Split(ips, 4)
	require.Len(t, batches, 4)
	sizes := []int{}
	total := 0
	for _, b := range batches {
		sizes = append(sizes, len(b))
		total += len(b)
	}
	assert.Equal(t, []int{3, 3, 2, 2}, sizes)
	assert.Equal(t, 10, total)

	assert.Len(t, Split(ips[:2], 8), 2)
	assert.Len(t, Split(ips, 0), 1)
	assert.Nil(t, Split(nil, 3))
}

func TestSetWithoutRange(t *testing.T) {
	s := NewSet(Range{})
	s.AddRange()
	s.Add(netip.MustParseAddr("10.0.0.7"))
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.7")}, s.List())
}
