// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package fileplugin renders the device table to a text file, one
// "ip mac name" line per device. The file is replaced atomically so a
// reader never sees a partial table.
package fileplugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/plugins"
)

var log = logger.GetLogger("plugins/file")

// Plugin wraps plugin registration information
var Plugin = plugins.Plugin{
	Name:  "file",
	Setup: setupFile,
}

func init() {
	if err := plugins.RegisterPlugin(&Plugin); err != nil {
		log.Fatalf("%v", err)
	}
}

// Sink is the data held by an instance of the file plugin
type Sink struct {
	sync.Mutex
	filename string
}

func setupFile(_ plugins.Controller, args ...string) (plugins.Sink, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("invalid number of arguments, want: 1 (file name), got: %d", len(args))
	}
	filename := args[0]
	if filename == "" {
		return nil, errors.New("file name cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", filename, err)
	}
	s := &Sink{filename: filename}
	// start from an empty table, nothing survives a restart
	if err := s.Render(nil); err != nil {
		return nil, err
	}
	log.Printf("Writing device table to %s", filename)
	return s, nil
}

// Render replaces the table file with devices.
func (s *Sink) Render(devices []device.Device) error {
	s.Lock()
	defer s.Unlock()
	return writeTableFile(s.filename, devices)
}

func (s *Sink) Close() error { return nil }
