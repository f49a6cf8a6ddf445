package arp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/cdwhistler/netscan/logger"
	"golang.org/x/net/bpf"
)

var log = logger.GetLogger("arp")

// ErrTimeout is returned by ReadFrame when no frame arrived within the poll
// interval. Callers loop on it.
var ErrTimeout = errors.New("arp read timeout")

// Local identifies the interface the daemon runs on. Frames sent from this
// address pair are never recorded.
type Local struct {
	Interface string
	MAC       net.HardwareAddr
	IP        netip.Addr
	Prefix    netip.Prefix
}

// LocalFromInterface reads the first IPv4 address and the hardware address
// of the named interface.
func LocalFromInterface(name string) (Local, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return Local{}, fmt.Errorf("interface %s: %w", name, err)
	}
	if len(iface.HardwareAddr) != 6 {
		return Local{}, fmt.Errorf("interface %s has no Ethernet address", name)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return Local{}, fmt.Errorf("addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil {
			continue
		}
		ip, _ := netip.AddrFromSlice(ipNet.IP.To4())
		ones, _ := ipNet.Mask.Size()
		return Local{
			Interface: name,
			MAC:       iface.HardwareAddr,
			IP:        ip,
			Prefix:    netip.PrefixFrom(ip, ones).Masked(),
		}, nil
	}
	return Local{}, fmt.Errorf("interface %s has no IPv4 address", name)
}

// IsSelf reports whether a sender belongs to the local interface.
func (l Local) IsSelf(mac net.HardwareAddr, ip netip.Addr) bool {
	if ip == l.IP {
		return true
	}
	return len(l.MAC) > 0 && string(mac) == string(l.MAC)
}

// FrameWriter sends raw Ethernet frames. Implementations must allow
// concurrent writers.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// arpFilter accepts frames with EtherType ARP and truncates nothing.
var arpFilter = []bpf.Instruction{
	bpf.LoadAbsolute{Off: 12, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0806, SkipFalse: 1},
	bpf.RetConstant{Val: 0xffff},
	bpf.RetConstant{Val: 0},
}

func assembleFilter() ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(arpFilter)
	if err != nil {
		return nil, fmt.Errorf("assemble arp filter: %w", err)
	}
	return raw, nil
}
