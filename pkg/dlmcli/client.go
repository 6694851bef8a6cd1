package dlmcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/abdu1rhmaan/dlm/common"
)

// Client is a framed-JSON connection to the daemon. One connection
// serves both request/response calls and the streamed task updates; the
// lock keeps an in-flight invoke from racing the update listener.
type Client struct {
	mu   *sync.RWMutex
	d    *Dispatcher
	conn net.Conn
}

// NewClient connects to a running daemon, spawning one if necessary.
func NewClient() (*Client, error) {
	if err := ensureDaemon(); err != nil {
		return nil, err
	}
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("error connecting to daemon: %s", err.Error())
	}
	return &Client{
		conn: conn,
		mu:   &sync.RWMutex{},
		d: &Dispatcher{
			Handlers: make(map[common.UpdateType]Handler),
		},
	}, nil
}

// AddHandler registers a handler for a streamed update type.
func (c *Client) AddHandler(utype common.UpdateType, h Handler) {
	c.d.Handlers[utype] = h
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Listen reads streamed updates until the server disconnects or a
// handler returns ErrDisconnect.
func (c *Client) Listen() (err error) {
	defer c.conn.Close()
	for {
		c.mu.RLock()
		var buf []byte
		buf, err = read(c.conn)
		if err != nil {
			c.mu.RUnlock()
			err = fmt.Errorf("error reading: %s", err.Error())
			return
		}
		err = c.d.process(buf)
		if err != nil {
			c.mu.RUnlock()
			if err == ErrDisconnect {
				err = nil
				break
			}
			err = fmt.Errorf("error processing: %s", err.Error())
			return
		}
		c.mu.RUnlock()
	}
	return
}

func (c *Client) invoke(method common.UpdateType, message any) (json.RawMessage, error) {
	// block the updates listener while invoking a method so the reply
	// is consumed here instead
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := json.Marshal(&Request{
		Method:  method,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	err = write(c.conn, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	buf, err = read(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	var res Response
	err = json.Unmarshal(buf, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %s", method, err.Error())
	}
	if !res.Ok {
		return nil, errors.New(res.Error)
	}
	return res.Update.Message, nil
}
