package rpc

import (
	"net"
	"time"
)

// listenRPC opens the daemon's Unix domain socket at path.
func listenRPC(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}

// dialRPC connects to a daemon already listening at path, used both by
// clients and by removeOldSocket's stale-socket probe.
func dialRPC(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}
