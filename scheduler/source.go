package scheduler

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cdwhistler/netscan/arp"
	"github.com/cdwhistler/netscan/nbns"
)

const (
	sourceBuffer = 64
	errorBackoff = time.Second
)

// FrameReader is the receive side of the link-layer socket.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

// DatagramReader is the receive side of the name-service socket.
type DatagramReader interface {
	ReadDatagram() (nbns.Datagram, error)
}

// Frames turns blocking frame reads into a channel closed when ctx is done
// or the socket is closed.
func Frames(ctx context.Context, r FrameReader) <-chan []byte {
	return pump(ctx, "arp", r.ReadFrame)
}

// Datagrams is Frames for the name-service socket.
func Datagrams(ctx context.Context, r DatagramReader) <-chan nbns.Datagram {
	return pump(ctx, "nbns", r.ReadDatagram)
}

func pump[T any](ctx context.Context, name string, read func() (T, error)) <-chan T {
	out := make(chan T, sourceBuffer)
	go func() {
		defer close(out)
		for {
			v, err := read()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				if errors.Is(err, arp.ErrTimeout) {
					continue
				}
				log.Warnf("Read %s socket: %v", name, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(errorBackoff):
				}
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
