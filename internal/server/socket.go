package server

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

// forceTCP reports whether the user disabled local transports in favor
// of TCP.
func forceTCP() bool {
	return os.Getenv(common.ForceTCPEnv) != ""
}
