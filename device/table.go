package device

import (
	"bytes"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/cdwhistler/netscan/logger"
)

var log = logger.GetLogger("device")

// Table is the attached device table keyed by IP address. It is not safe
// for concurrent use; the scheduler goroutine owns it.
type Table struct {
	devices map[netip.Addr]*Device
	now     func() time.Time
}

// NewTable returns an empty table stamping records with now. A nil now
// means time.Now.
func NewTable(now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{
		devices: make(map[netip.Addr]*Device),
		now:     now,
	}
}

// Upsert records a sighting of ip at mac.
func (t *Table) Upsert(ip netip.Addr, mac net.HardwareAddr) UpsertResult {
	d, ok := t.devices[ip]
	if !ok {
		t.devices[ip] = &Device{
			IP:       ip,
			MAC:      append(net.HardwareAddr(nil), mac...),
			Active:   true,
			LastSeen: t.now(),
		}
		log.Debugf("New device %s at %s", ip, mac)
		return Created
	}
	if !bytes.Equal(d.MAC, mac) {
		log.Infof("Device %s moved from %s to %s", ip, d.MAC, mac)
		d.MAC = append(d.MAC[:0], mac...)
	}
	d.Active = true
	d.LastSeen = t.now()
	return Updated
}

// MarkName sets the name of ip. Names for devices that are no longer in the
// table are dropped and false is returned.
func (t *Table) MarkName(ip netip.Addr, name string) bool {
	d, ok := t.devices[ip]
	if !ok {
		log.Debugf("Dropping name %q for unknown device %s", name, ip)
		return false
	}
	d.Name = name
	return true
}

// ResetActive clears the active flag on every record.
func (t *Table) ResetActive() {
	for _, d := range t.devices {
		d.Active = false
	}
}

// EvictInactive removes every record that is not active and returns them.
func (t *Table) EvictInactive() []Device {
	var evicted []Device
	for ip, d := range t.devices {
		if d.Active {
			continue
		}
		evicted = append(evicted, *d)
		delete(t.devices, ip)
	}
	sortByIP(evicted)
	return evicted
}

// Render returns a copy of the table ordered by IP address.
func (t *Table) Render() []Device {
	out := make([]Device, 0, len(t.devices))
	for _, d := range t.devices {
		out = append(out, d.clone())
	}
	sortByIP(out)
	return out
}

// Get returns a copy of the record for ip.
func (t *Table) Get(ip netip.Addr) (Device, bool) {
	d, ok := t.devices[ip]
	if !ok {
		return Device{}, false
	}
	return d.clone(), true
}

// IPs returns the addresses currently in the table in ascending order.
func (t *Table) IPs() []netip.Addr {
	ips := make([]netip.Addr, 0, len(t.devices))
	for ip := range t.devices {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool { return ips[i].Less(ips[j]) })
	return ips
}

func (t *Table) Len() int {
	return len(t.devices)
}

func sortByIP(devices []Device) {
	sort.Slice(devices, func(i, j int) bool { return devices[i].IP.Less(devices[j].IP) })
}
