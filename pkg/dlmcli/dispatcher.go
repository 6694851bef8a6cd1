package dlmcli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abdu1rhmaan/dlm/common"
)

type Dispatcher struct {
	Handlers map[common.UpdateType]Handler
}

// ErrDisconnect tells Listen to stop cleanly.
var ErrDisconnect error = errors.New("disconnect")

func (d *Dispatcher) process(buf []byte) error {
	var res Response
	err := json.Unmarshal(buf, &res)
	if err != nil {
		return fmt.Errorf("failed to parse (%s): '%s'", err.Error(), string(buf))
	}
	if !res.Ok {
		return errors.New(res.Error)
	}
	if res.Update == nil {
		return nil
	}
	if h, ok := d.Handlers[res.Update.Type]; ok {
		return h.Handle(res.Update.Message)
	}
	fmt.Println(string(res.Update.Message))
	return nil
}
