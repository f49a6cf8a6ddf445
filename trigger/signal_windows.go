package trigger

import "os"

// no user signals on windows; only the trigger file works
var (
	refreshSignals []os.Signal
	renderSignals  []os.Signal
)
