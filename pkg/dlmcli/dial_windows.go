//go:build windows

package dlmcli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"

	"github.com/abdu1rhmaan/dlm/common"
)

// dialPipeFunc points to the pipe dialing implementation; tests swap it
// for a mock.
var dialPipeFunc = dialPipeImpl

func dialPipeImpl(path string, timeout *time.Duration) (net.Conn, error) {
	if timeout == nil {
		defaultTimeout := common.DefaultDialTimeout
		timeout = &defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return winio.DialPipeContext(ctx, path)
}

// dial establishes a connection to the daemon using a named pipe with
// TCP fallback. Transport priority: Named pipe > TCP
func dial() (net.Conn, error) {
	if forceTCP() {
		return dialFunc("tcp", tcpAddress())
	}
	pipePath := pipePath()
	debugLog("Attempting connection via named pipe at %s", pipePath)
	timeout := common.DefaultDialTimeout
	conn, pipeErr := dialPipeFunc(pipePath, &timeout)
	if pipeErr != nil {
		debugLog("Named pipe connection failed: %v, falling back to TCP", pipeErr)
		conn, err := dialFunc("tcp", tcpAddress())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: named pipe error: %v; tcp error: %w", pipeErr, err)
		}
		debugLog("Successfully connected via TCP fallback to %s", tcpAddress())
		return conn, nil
	}
	debugLog("Successfully connected via named pipe")
	return conn, nil
}

// isDaemonRunning probes the pipe (or TCP address) for a listener.
func isDaemonRunning(path string) bool {
	if forceTCP() {
		conn, err := dialFunc("tcp", path)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
	timeout := common.DefaultDialTimeout
	conn, err := dialPipeFunc(path, &timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
