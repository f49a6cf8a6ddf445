package scheduler

import (
	"net/netip"
	"time"

	"github.com/cdwhistler/netscan/arp"
)

type workerResult struct {
	id     int
	sent   int
	failed int
	err    error
}

// spawn starts a probe worker for batch. The worker only writes frames; its
// result is collected by reap.
func (s *Scheduler) spawn(batch []netip.Addr) {
	id := s.nextWorker
	s.nextWorker++
	s.running++
	local, writer, pace := s.local, s.writer, s.cfg.Pace
	go func() {
		res := probe(local, writer, batch, pace)
		res.id = id
		s.done <- res
		s.signalReap()
	}()
}

func (s *Scheduler) signalReap() {
	select {
	case s.reapSig <- struct{}{}:
	default:
	}
}

// reap collects at most ReapMax finished workers. If it stops at the cap it
// leaves the reap signal set so the rest is collected on a later pass.
func (s *Scheduler) reap() int {
	n := 0
	for ; n < s.cfg.ReapMax; n++ {
		select {
		case r := <-s.done:
			s.running--
			if r.err != nil {
				log.Warnf("Probe worker %d sent %d, %d failed, last error: %v", r.id, r.sent, r.failed, r.err)
			} else {
				log.Debugf("Probe worker %d exited after %d probes", r.id, r.sent)
			}
		default:
			return n
		}
	}
	if len(s.done) > 0 {
		s.signalReap()
	}
	return n
}

func probe(local arp.Local, w arp.FrameWriter, batch []netip.Addr, pace time.Duration) workerResult {
	var res workerResult
	for i, ip := range batch {
		if i > 0 && pace > 0 {
			time.Sleep(pace)
		}
		frame, err := arp.NewRequest(local.MAC, local.IP, ip)
		if err == nil {
			err = w.WriteFrame(frame)
		}
		if err != nil {
			res.failed++
			res.err = err
			continue
		}
		res.sent++
	}
	return res
}
