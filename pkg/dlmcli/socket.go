//go:build !windows

package dlmcli

import (
	"os"
	"path/filepath"

	"github.com/abdu1rhmaan/dlm/common"
)

func socketPath() string {
	if path := os.Getenv(common.SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "dlm.sock")
}

// connectionPath is what isDaemonRunning probes.
func connectionPath() string {
	if forceTCP() {
		return tcpAddress()
	}
	return socketPath()
}
