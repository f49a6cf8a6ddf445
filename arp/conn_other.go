//go:build !linux

package arp

import (
	"errors"
	"runtime"
)

// Conn is unavailable off Linux.
type Conn struct{}

func Open(iface string) (*Conn, error) {
	return nil, errors.New("packet sockets are not supported on " + runtime.GOOS)
}

func (c *Conn) ReadFrame() ([]byte, error) { return nil, errors.New("closed") }

func (c *Conn) WriteFrame(frame []byte) error { return errors.New("closed") }

func (c *Conn) Close() error { return nil }
