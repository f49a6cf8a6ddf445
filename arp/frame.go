// Package arp parses and builds Ethernet framed ARP packets and provides
// the link-layer socket the daemon listens and probes on.
package arp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// MinFrameLen is an Ethernet header plus an IPv4-over-Ethernet ARP payload.
const MinFrameLen = 14 + 28

var (
	ErrShortFrame = errors.New("frame shorter than minimum ARP frame")
	ErrNotARP     = errors.New("not an IPv4 over Ethernet ARP frame")
	ErrOperation  = errors.New("unsupported ARP operation")
)

var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Operation is the ARP opcode of a frame.
type Operation uint16

const (
	Request Operation = layers.ARPRequest
	Reply   Operation = layers.ARPReply
)

func (o Operation) String() string {
	switch o {
	case Request:
		return "request"
	case Reply:
		return "reply"
	}
	return fmt.Sprintf("op(%d)", uint16(o))
}

// Packet is the part of an ARP frame the discovery logic cares about.
type Packet struct {
	Operation Operation
	SenderMAC net.HardwareAddr
	SenderIP  netip.Addr
	TargetIP  netip.Addr
}

// Parser decodes frames without allocating layers per packet. A Parser is
// not safe for concurrent use.
type Parser struct {
	eth     layers.Ethernet
	arp     layers.ARP
	payload gopacket.Payload
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func NewParser() *Parser {
	p := &Parser{}
	p.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &p.eth, &p.arp, &p.payload)
	p.parser.IgnoreUnsupported = true
	return p
}

// Parse decodes frame. The returned addresses do not alias frame.
func (p *Parser) Parse(frame []byte) (Packet, error) {
	if len(frame) < MinFrameLen {
		return Packet{}, ErrShortFrame
	}
	if err := p.parser.DecodeLayers(frame, &p.decoded); err != nil {
		return Packet{}, fmt.Errorf("decode frame: %w", err)
	}
	if !p.has(layers.LayerTypeARP) {
		return Packet{}, ErrNotARP
	}
	a := &p.arp
	if a.AddrType != layers.LinkTypeEthernet || a.Protocol != layers.EthernetTypeIPv4 ||
		a.HwAddressSize != 6 || a.ProtAddressSize != 4 {
		return Packet{}, ErrNotARP
	}
	op := Operation(a.Operation)
	if op != Request && op != Reply {
		return Packet{}, ErrOperation
	}
	sender, _ := netip.AddrFromSlice(a.SourceProtAddress)
	target, _ := netip.AddrFromSlice(a.DstProtAddress)
	return Packet{
		Operation: op,
		SenderMAC: append(net.HardwareAddr(nil), a.SourceHwAddress...),
		SenderIP:  sender,
		TargetIP:  target,
	}, nil
}

func (p *Parser) has(t gopacket.LayerType) bool {
	for _, d := range p.decoded {
		if d == t {
			return true
		}
	}
	return false
}

// NewRequest builds a broadcast who-has frame for target sent from
// srcMAC/srcIP.
func NewRequest(srcMAC net.HardwareAddr, srcIP, target netip.Addr) ([]byte, error) {
	return build(layers.ARPRequest, srcMAC, srcIP, broadcast, net.HardwareAddr{0, 0, 0, 0, 0, 0}, target)
}

// NewReply builds an is-at frame. The daemon never answers ARP itself; tests
// use it to fabricate sightings.
func NewReply(srcMAC net.HardwareAddr, srcIP netip.Addr, dstMAC net.HardwareAddr, dstIP netip.Addr) ([]byte, error) {
	return build(layers.ARPReply, srcMAC, srcIP, dstMAC, dstMAC, dstIP)
}

func build(op uint16, srcMAC net.HardwareAddr, srcIP netip.Addr, ethDst, arpDst net.HardwareAddr, dstIP netip.Addr) ([]byte, error) {
	if !srcIP.Is4() || !dstIP.Is4() {
		return nil, fmt.Errorf("arp needs IPv4 addresses, got %s -> %s", srcIP, dstIP)
	}
	src4, dst4 := srcIP.As4(), dstIP.As4()
	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       ethDst,
		EthernetType: layers.EthernetTypeARP,
	}
	a := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: src4[:],
		DstHwAddress:      arpDst,
		DstProtAddress:    dst4[:],
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &a); err != nil {
		return nil, fmt.Errorf("serialize arp %d: %w", op, err)
	}
	return buf.Bytes(), nil
}
