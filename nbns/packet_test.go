package nbns

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name   string
	suffix byte
	flags  uint16
}

// nodeStatusResponse mirrors what Windows and Samba send back: no question,
// one NBSTAT answer with the full encoded wildcard name.
func nodeStatusResponse(id uint16, entries ...entry) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint16(b[0:], id)
	binary.BigEndian.PutUint16(b[2:], 0x8400)
	binary.BigEndian.PutUint16(b[6:], 1)
	b = append(b, 0x20)
	b = append(b, EncodeName("*", 0)...)
	b = append(b, 0)
	b = binary.BigEndian.AppendUint16(b, typeNBSTAT)
	b = binary.BigEndian.AppendUint16(b, classIN)
	b = binary.BigEndian.AppendUint32(b, 0)

	rdata := []byte{byte(len(entries))}
	for _, e := range entries {
		var name [15]byte
		for i := range name {
			name[i] = ' '
		}
		copy(name[:], e.name)
		rdata = append(rdata, name[:]...)
		rdata = append(rdata, e.suffix)
		rdata = binary.BigEndian.AppendUint16(rdata, e.flags)
	}
	rdata = append(rdata, make([]byte, 46)...) // statistics
	b = binary.BigEndian.AppendUint16(b, uint16(len(rdata)))
	return append(b, rdata...)
}

func TestEncodeName(t *testing.T) {
	assert.Equal(t, "CKAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", string(EncodeName("*", 0)))
	assert.Equal(t, "EOEFEEEFFCEBCACACACACACACACACAAA", string(EncodeName("nedera", 0)))
}

func TestNodeStatusRequest(t *testing.T) {
	b := NodeStatusRequest(0xbeef)
	require.Len(t, b, 50)
	assert.Equal(t, uint16(0xbeef), binary.BigEndian.Uint16(b))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(b[2:]))
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(b[4:]))
	assert.Equal(t, byte(0x20), b[12])
	assert.Equal(t, uint16(typeNBSTAT), binary.BigEndian.Uint16(b[46:]))
	assert.Equal(t, uint16(classIN), binary.BigEndian.Uint16(b[48:]))
}

func TestParseNodeStatus(t *testing.T) {
	resp := nodeStatusResponse(7,
		entry{"WORKGROUP", 0x00, 0x8400},
		entry{"DESKTOP-7QK", 0x00, 0x0400},
		entry{"DESKTOP-7QK", 0x20, 0x0400},
	)
	id, entries, err := ParseNodeStatus(resp)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), id)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Group)
	assert.Equal(t, byte(0x20), entries[2].Suffix)

	name, err := MachineName(entries)
	require.NoError(t, err)
	assert.Equal(t, "DESKTOP-7QK", name)
}

func TestMachineNameFallback(t *testing.T) {
	name, err := MachineName([]NameEntry{{Name: ""}, {Name: "NAS", Suffix: 0x20}})
	require.NoError(t, err)
	assert.Equal(t, "NAS", name)

	_, err = MachineName(nil)
	assert.ErrorIs(t, err, ErrNoName)
}

func TestParseNodeStatusRejects(t *testing.T) {
	good := nodeStatusResponse(1, entry{"HOST", 0, 0})

	for n := 0; n < len(good)-46-18; n++ {
		_, _, err := ParseNodeStatus(good[:n])
		assert.Error(t, err, "len %d", n)
	}

	_, _, err := ParseNodeStatus(NodeStatusRequest(1))
	assert.ErrorIs(t, err, ErrNotResponse)

	wrongType := append([]byte(nil), good...)
	binary.BigEndian.PutUint16(wrongType[12+34:], 0x0020)
	_, _, err = ParseNodeStatus(wrongType)
	assert.ErrorIs(t, err, ErrNotResponse)
}

func TestParseNodeStatusCleansName(t *testing.T) {
	resp := nodeStatusResponse(9,
		entry{"MY PC", 0x00, 0x0400},
		entry{"EVIL\nHOST\x07", 0x20, 0x0400},
		entry{"\x01\x02", 0x03, 0x0400},
	)
	_, entries, err := ParseNodeStatus(resp)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "MY PC", entries[0].Name)
	assert.Equal(t, "EVILHOST", entries[1].Name)
	assert.Equal(t, "", entries[2].Name)
}
