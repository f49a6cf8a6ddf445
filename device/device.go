package device

import (
	"encoding/json"
	"net"
	"net/netip"
	"time"
)

// Device is one attached host as learned from ARP sightings.
type Device struct {
	IP       netip.Addr       `json:"ip"`
	MAC      net.HardwareAddr `json:"mac"`
	Name     string           `json:"name"`
	Active   bool             `json:"-"`
	LastSeen time.Time        `json:"last_seen"`
}

// UpsertResult tells whether a sighting created or refreshed a record.
type UpsertResult int

const (
	Created UpsertResult = iota
	Updated
)

func (r UpsertResult) String() string {
	if r == Created {
		return "created"
	}
	return "updated"
}

func (d Device) clone() Device {
	c := d
	c.MAC = append(net.HardwareAddr(nil), d.MAC...)
	return c
}

// MarshalJSON writes the MAC in its colon form instead of base64.
func (d Device) MarshalJSON() ([]byte, error) {
	type plain Device
	return json.Marshal(struct {
		plain
		MAC string `json:"mac"`
	}{plain(d), d.MAC.String()})
}
