//go:build !windows

package trigger

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignals(t *testing.T) {
	c := &counter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Signals(ctx, c)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, func() bool { return c.refreshes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGALRM))
	require.Eventually(t, func() bool { return c.renders.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
