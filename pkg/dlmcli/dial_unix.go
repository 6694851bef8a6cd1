//go:build !windows

package dlmcli

import (
	"fmt"
	"net"
)

// dial establishes a connection to the daemon using a Unix socket with
// TCP fallback. Transport priority: Unix socket > TCP
func dial() (net.Conn, error) {
	if forceTCP() {
		return dialFunc("tcp", tcpAddress())
	}
	debugLog("Attempting connection via Unix socket at %s", socketPath())
	conn, unixErr := dialFunc("unix", socketPath())
	if unixErr != nil {
		debugLog("Unix socket connection failed: %v, falling back to TCP", unixErr)
		conn, err := dialFunc("tcp", tcpAddress())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: unix socket error: %v; tcp error: %w", unixErr, err)
		}
		debugLog("Successfully connected via TCP fallback to %s", tcpAddress())
		return conn, nil
	}
	debugLog("Successfully connected via Unix socket")
	return conn, nil
}

// isDaemonRunning probes the socket (or TCP address) for a listener.
func isDaemonRunning(path string) bool {
	network := "unix"
	if forceTCP() {
		network = "tcp"
	}
	conn, err := dialFunc(network, path)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
