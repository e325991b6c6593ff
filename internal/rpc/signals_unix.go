//go:build !windows

package rpc

import (
	"os"
	"syscall"
)

// serverSignals are the signals handleSignals watches for a graceful
// shutdown request.
var serverSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
