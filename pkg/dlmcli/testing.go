package dlmcli

import (
	"net"
	"sync"

	"github.com/abdu1rhmaan/dlm/common"
)

// NewClientForTesting creates a Client over a custom connection so
// tests can inject a pipe without a daemon.
func NewClientForTesting(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		mu:   &sync.RWMutex{},
		d: &Dispatcher{
			Handlers: make(map[common.UpdateType]Handler),
		},
	}
}

// ReadForTesting exposes the frame reader.
func ReadForTesting(conn net.Conn) ([]byte, error) {
	return read(conn)
}

// WriteForTesting exposes the frame writer.
func WriteForTesting(conn net.Conn, data []byte) error {
	return write(conn, data)
}
