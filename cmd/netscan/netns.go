package main

import (
	"fmt"
	"runtime"

	"github.com/vishvananda/netns"
)

// inNetns runs open inside the named network namespace. Sockets created
// there stay bound to it after the thread switches back.
func inNetns(name string, open func() error) error {
	if name == "" {
		return open()
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("current netns: %w", err)
	}
	defer orig.Close()
	ns, err := netns.GetFromName(name)
	if err != nil {
		return fmt.Errorf("netns %s: %w", name, err)
	}
	defer ns.Close()
	if err := netns.Set(ns); err != nil {
		return fmt.Errorf("enter netns %s: %w", name, err)
	}
	defer func() {
		if err := netns.Set(orig); err != nil {
			log.Errorf("Cannot return to the original netns: %v", err)
		}
	}()
	return open()
}
