// Package discovery applies ARP sightings and NetBIOS answers to the
// device table.
package discovery

import (
	"net/netip"

	"github.com/cdwhistler/netscan/arp"
	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/nbns"
)

var log = logger.GetLogger("discovery")

// Namer asks a host for its name. The answer comes back asynchronously
// through HandleNameResponse.
type Namer interface {
	QueryName(ip netip.Addr) error
}

// Verdict is what HandleFrame did with a frame.
type Verdict int

const (
	Ignored Verdict = iota
	SawRequest
	SawReply
)

func (v Verdict) String() string {
	switch v {
	case SawRequest:
		return "request"
	case SawReply:
		return "reply"
	}
	return "ignored"
}

// Engine holds no state of its own besides a reusable frame parser; it must
// run on the goroutine that owns the table.
type Engine struct {
	table  *device.Table
	local  arp.Local
	namer  Namer
	parser *arp.Parser
}

func NewEngine(table *device.Table, local arp.Local, namer Namer) *Engine {
	return &Engine{
		table:  table,
		local:  local,
		namer:  namer,
		parser: arp.NewParser(),
	}
}

// HandleFrame learns the sender of an ARP frame. Only replies trigger a name
// query: a reply shows the host answers unicast traffic.
func (e *Engine) HandleFrame(frame []byte) Verdict {
	pkt, err := e.parser.Parse(frame)
	if err != nil {
		log.Debugf("Drop frame (%d bytes): %v", len(frame), err)
		return Ignored
	}
	if !pkt.SenderIP.Is4() || pkt.SenderIP.IsUnspecified() {
		// duplicate address detection probe, sender has no address yet
		return Ignored
	}
	if e.local.IsSelf(pkt.SenderMAC, pkt.SenderIP) {
		return Ignored
	}

	res := e.table.Upsert(pkt.SenderIP, pkt.SenderMAC)
	log.Debugf("ARP %s from %s at %s: %s", pkt.Operation, pkt.SenderIP, pkt.SenderMAC, res)

	if pkt.Operation != arp.Reply {
		return SawRequest
	}
	if err := e.namer.QueryName(pkt.SenderIP); err != nil {
		log.Warnf("Name query for %s: %v", pkt.SenderIP, err)
	}
	return SawReply
}

// HandleNameResponse records the machine name carried by a node status
// response from the given address. It reports whether the table changed.
func (e *Engine) HandleNameResponse(d nbns.Datagram) bool {
	_, entries, err := nbns.ParseNodeStatus(d.Data)
	if err != nil {
		log.Debugf("Drop name-service packet from %s: %v", d.From, err)
		return false
	}
	name, err := nbns.MachineName(entries)
	if err != nil {
		log.Debugf("No name from %s: %v", d.From, err)
		return false
	}
	if !e.table.MarkName(d.From, name) {
		return false
	}
	log.Infof("Device %s is %s", d.From, name)
	return true
}
