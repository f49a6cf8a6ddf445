//go:build !windows

package trigger

import (
	"os"
	"syscall"
)

var (
	refreshSignals = []os.Signal{syscall.SIGUSR1}
	renderSignals  = []os.Signal{syscall.SIGALRM}
)
