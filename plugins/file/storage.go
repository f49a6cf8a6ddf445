// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package fileplugin

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdwhistler/netscan/device"
)

// ReadTable loads a table file written by the file plugin.
func ReadTable(filename string) ([]device.Device, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open table file %s: %w", filename, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warningf("Failed to close file %s: %v", filename, err)
		}
	}()
	return loadRecords(f)
}

// loadRecords parses one device per line: an IPv4 address, a mac address
// and an optional name taking the rest of the line, spaces included.
func loadRecords(r io.Reader) ([]device.Device, error) {
	sc := bufio.NewScanner(r)
	var devices []device.Device
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		tokens := strings.SplitN(line, " ", 3)
		if len(tokens) < 2 {
			return nil, fmt.Errorf("malformed line, want at least 2 fields, got %d: %s", len(tokens), line)
		}
		ip, err := netip.ParseAddr(tokens[0])
		if err != nil || !ip.Is4() {
			return nil, fmt.Errorf("expected an IPv4 address, got: %v", tokens[0])
		}
		hwaddr, err := net.ParseMAC(tokens[1])
		if err != nil {
			return nil, fmt.Errorf("malformed hardware address: %s", tokens[1])
		}
		d := device.Device{IP: ip, MAC: hwaddr}
		if len(tokens) == 3 {
			d.Name = tokens[2]
		}
		devices = append(devices, d)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

func writeRecords(w io.Writer, devices []device.Device) error {
	bw := bufio.NewWriter(w)
	for _, d := range devices {
		line := d.IP.String() + " " + d.MAC.String()
		if name := singleLine(d.Name); name != "" {
			line += " " + name
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeTableFile writes to a temporary file next to filename and renames
// it into place.
func writeTableFile(filename string, devices []device.Device) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("create temporary table file: %w", err)
	}
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmp.Name())
	}()
	if err := writeRecords(tmp, devices); err != nil {
		tmp.Close()
		return fmt.Errorf("write table file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("replace %s: %w", filename, err)
	}
	return nil
}

// singleLine keeps a name from splitting its record.
func singleLine(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, name)
}
