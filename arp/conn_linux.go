//go:build linux

package arp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket/afpacket"
)

const pollTimeout = 200 * time.Millisecond

// Conn is an AF_PACKET socket on one interface that only sees ARP frames.
type Conn struct {
	tp *afpacket.TPacket
}

// Open binds a packet socket to iface and installs the ARP filter.
func Open(iface string) (*Conn, error) {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface),
		afpacket.OptFrameSize(2048),
		afpacket.OptBlockSize(64*1024),
		afpacket.OptNumBlocks(8),
		afpacket.OptPollTimeout(pollTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion2),
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket on %s: %w", iface, err)
	}
	raw, err := assembleFilter()
	if err != nil {
		tp.Close()
		return nil, err
	}
	if err := tp.SetBPF(raw); err != nil {
		tp.Close()
		return nil, fmt.Errorf("set arp filter on %s: %w", iface, err)
	}
	log.Infof("Listening for ARP on %s", iface)
	return &Conn{tp: tp}, nil
}

// ReadFrame returns the next frame. The slice is owned by the caller.
func (c *Conn) ReadFrame() ([]byte, error) {
	data, _, err := c.tp.ReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return data, nil
}

func (c *Conn) WriteFrame(frame []byte) error {
	return c.tp.WritePacketData(frame)
}

func (c *Conn) Close() error {
	c.tp.Close()
	return nil
}
