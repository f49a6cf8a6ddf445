package scheduler

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cdwhistler/netscan/arp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	mu    sync.Mutex
	steps []func() ([]byte, error)
}

func (r *scriptedReader) ReadFrame() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) == 0 {
		return nil, net.ErrClosed
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	return step()
}

func frame(b byte) func() ([]byte, error) {
	return func() ([]byte, error) { return []byte{b}, nil }
}

func timeout() ([]byte, error) { return nil, arp.ErrTimeout }

func TestFramesSkipsTimeoutsAndStopsOnClose(t *testing.T) {
	r := &scriptedReader{steps: []func() ([]byte, error){frame(1), timeout, timeout, frame(2)}}
	ch := Frames(context.Background(), r)

	var got []byte
	for f := range ch {
		got = append(got, f...)
	}
	assert.Equal(t, []byte{1, 2}, got)
}

type blockingReader struct{}

func (blockingReader) ReadFrame() ([]byte, error) {
	time.Sleep(5 * time.Millisecond)
	return nil, arp.ErrTimeout
}

func TestFramesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Frames(ctx, blockingReader{})
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}
