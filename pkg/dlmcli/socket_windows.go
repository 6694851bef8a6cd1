//go:build windows

package dlmcli

import (
	"github.com/abdu1rhmaan/dlm/common"
)

func pipePath() string {
	return common.PipePath()
}

// connectionPath is what isDaemonRunning probes.
func connectionPath() string {
	if forceTCP() {
		return tcpAddress()
	}
	return pipePath()
}
