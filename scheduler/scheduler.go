// Package scheduler runs the single event loop that owns the device table.
// Socket input, refresh and render triggers, the collection timer and probe
// worker completions all arrive as channel events and are handled on that
// one goroutine.
package scheduler

import (
	"context"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/cdwhistler/netscan/arp"
	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/discovery"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/nbns"
	"github.com/cdwhistler/netscan/plugins"
	"github.com/cdwhistler/netscan/targets"
)

var log = logger.GetLogger("scheduler")

const inboxSize = 16

// State is the phase of the refresh cycle.
type State int

const (
	Idle State = iota
	Probing
	Collecting
	Pruning
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Collecting:
		return "collecting"
	case Pruning:
		return "pruning"
	}
	return "idle"
}

// Event is an external trigger.
type Event int

const (
	EventRefresh Event = iota
	EventRender
)

func (e Event) String() string {
	if e == EventRefresh {
		return "refresh"
	}
	return "render"
}

// Config tunes the refresh cycle.
type Config struct {
	// Window is how long replies are collected before pruning.
	Window time.Duration
	// MinInterval is the minimum time between two accepted refreshes.
	MinInterval time.Duration
	// RenderInterval drives the periodic render. Zero disables it.
	RenderInterval time.Duration
	// ReapMax bounds how many finished workers one reap pass collects.
	ReapMax int
	// Workers is the number of probe batches per cycle.
	Workers int
	// Pace is the gap between two probes sent by one worker.
	Pace time.Duration
	// ProbeSubnet adds every address of Range to the probe targets.
	ProbeSubnet bool
	Range       targets.Range
}

func DefaultConfig() Config {
	return Config{
		Window:         3 * time.Second,
		MinInterval:    8 * time.Second,
		RenderInterval: 5 * time.Second,
		ReapMax:        100,
		Workers:        4,
		Pace:           time.Millisecond,
		ProbeSubnet:    true,
	}
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock used for debouncing and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler drives discovery and the refresh cycle.
type Scheduler struct {
	cfg    Config
	local  arp.Local
	writer arp.FrameWriter
	table  *device.Table
	engine *discovery.Engine
	sinks  []plugins.Sink
	now    func() time.Time

	inbox     chan Event
	reapSig   chan struct{}
	collected chan struct{}
	done      chan workerResult
	publish   chan []device.Device

	state       State
	lastRefresh time.Time
	timer       *time.Timer
	cycles      int
	running     int
	nextWorker  int

	snapshot atomic.Pointer[[]device.Device]
}

// New builds a scheduler for the interface described by local. Probes are
// written to writer, name queries go to namer.
func New(cfg Config, local arp.Local, writer arp.FrameWriter, namer discovery.Namer, opts ...Option) *Scheduler {
	if cfg.ReapMax < 1 {
		cfg.ReapMax = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s := &Scheduler{
		cfg:       cfg,
		local:     local,
		writer:    writer,
		now:       wallClock,
		inbox:     make(chan Event, inboxSize),
		reapSig:   make(chan struct{}, 1),
		collected: make(chan struct{}, 1),
		done:      make(chan workerResult, 2*cfg.ReapMax),
		publish:   make(chan []device.Device, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.table = device.NewTable(s.now)
	s.engine = discovery.NewEngine(s.table, local, namer)
	empty := []device.Device{}
	s.snapshot.Store(&empty)
	return s
}

// wallClock drops the monotonic reading so the debounce compares wall time.
func wallClock() time.Time {
	return time.Now().Round(0)
}

// AddSinks registers presentation sinks. Call before Run.
func (s *Scheduler) AddSinks(sinks ...plugins.Sink) {
	s.sinks = append(s.sinks, sinks...)
}

// Refresh requests a refresh cycle. Safe from any goroutine.
func (s *Scheduler) Refresh() {
	s.post(EventRefresh)
}

// Render requests a display refresh. Safe from any goroutine.
func (s *Scheduler) Render() {
	s.post(EventRender)
}

// Snapshot returns the table as of the last render. The slice is shared and
// must not be modified.
func (s *Scheduler) Snapshot() []device.Device {
	return *s.snapshot.Load()
}

func (s *Scheduler) post(ev Event) {
	select {
	case s.inbox <- ev:
	default:
		log.Debugf("Inbox full, dropping %s trigger", ev)
	}
}

// Run processes input until ctx is done. A nil or closed source is simply
// never ready.
func (s *Scheduler) Run(ctx context.Context, frames <-chan []byte, datagrams <-chan nbns.Datagram) error {
	var tick <-chan time.Time
	if s.cfg.RenderInterval > 0 {
		t := time.NewTicker(s.cfg.RenderInterval)
		defer t.Stop()
		tick = t.C
	}
	defer func() {
		if s.timer != nil {
			s.timer.Stop()
		}
	}()
	pubCtx, stopPub := context.WithCancel(ctx)
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		s.publisher(pubCtx)
	}()
	// sinks may be closed once Run returns, so no Render may still be running
	defer func() {
		stopPub()
		<-pubDone
	}()

	s.render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			s.engine.HandleFrame(f)
		case d, ok := <-datagrams:
			if !ok {
				datagrams = nil
				continue
			}
			s.engine.HandleNameResponse(d)
		case ev := <-s.inbox:
			s.handle(ev)
		case <-s.collected:
			s.prune()
		case <-s.reapSig:
			s.reap()
		case <-tick:
			s.render()
		}
		s.drain()
	}
}

// drain handles triggers that piled up while the loop was busy. Each source
// is visited once so a backlog never starves socket input.
func (s *Scheduler) drain() {
	for n := len(s.inbox); n > 0; n-- {
		s.handle(<-s.inbox)
	}
	select {
	case <-s.collected:
		s.prune()
	default:
	}
	select {
	case <-s.reapSig:
		s.reap()
	default:
	}
}

func (s *Scheduler) handle(ev Event) {
	switch ev {
	case EventRefresh:
		s.refresh()
	case EventRender:
		s.render()
	}
}

// tooSoon applies the debounce. A clock that went backwards lets the
// refresh through.
func (s *Scheduler) tooSoon(now time.Time) bool {
	if s.lastRefresh.IsZero() || now.Before(s.lastRefresh) {
		return false
	}
	return now.Sub(s.lastRefresh) < s.cfg.MinInterval
}

func (s *Scheduler) refresh() {
	now := s.now()
	if s.tooSoon(now) {
		log.Debugf("Refresh too quickly, last %s, now %s", s.lastRefresh.Format(time.RFC3339), now.Format(time.RFC3339))
		return
	}
	if s.state != Idle {
		log.Debugf("Refresh while %s, ignored", s.state)
		return
	}
	s.lastRefresh = now
	s.cycles++

	s.table.ResetActive()
	s.state = Probing
	ips := s.probeTargets()
	batches := targets.Split(ips, s.cfg.Workers)
	for _, b := range batches {
		s.spawn(b)
	}
	log.Infof("Refresh %d: probing %d addresses with %d workers", s.cycles, len(ips), len(batches))

	s.state = Collecting
	s.timer = time.AfterFunc(s.cfg.Window, func() {
		select {
		case s.collected <- struct{}{}:
		default:
		}
	})
	s.reap()
}

func (s *Scheduler) probeTargets() []netip.Addr {
	set := targets.NewSet(s.cfg.Range)
	if s.cfg.ProbeSubnet && s.cfg.Range.Start.IsValid() {
		set.AddRange()
	}
	for _, ip := range s.table.IPs() {
		set.Add(ip)
	}
	set.Exclude(s.local.IP)
	return set.List()
}

func (s *Scheduler) prune() {
	if s.state != Collecting {
		return
	}
	s.state = Pruning
	for _, d := range s.table.EvictInactive() {
		log.Infof("Device %s (%s) did not answer, removed", d.IP, d.MAC)
	}
	s.render()
	s.state = Idle
}

func (s *Scheduler) render() {
	snap := s.table.Render()
	s.snapshot.Store(&snap)
	for {
		select {
		case s.publish <- snap:
			return
		default:
		}
		// replace the stale snapshot nobody picked up yet
		select {
		case <-s.publish:
		default:
		}
	}
}

func (s *Scheduler) publisher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.publish:
			for _, sink := range s.sinks {
				if err := sink.Render(snap); err != nil {
					log.Warnf("Render to sink: %v", err)
				}
			}
		}
	}
}
