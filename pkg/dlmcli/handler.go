package dlmcli

import (
	"encoding/json"

	"github.com/abdu1rhmaan/dlm/common"
)

// Handler processes a streamed daemon update. Implementations receive
// the raw JSON message and are responsible for unmarshaling it.
type Handler interface {
	Handle(json.RawMessage) error
}

// NewDownloadingHandler creates a handler for task progress updates.
// The action parameter filters updates to those matching the given
// downloading action; pass an empty string to receive all of them.
func NewDownloadingHandler(action common.DownloadingAction, callback func(*common.DownloadingResponse) error) *DownloadingHandler {
	return &DownloadingHandler{
		Action:   action,
		Callback: callback,
	}
}

// DownloadingHandler filters streamed "downloading" updates by action
// and invokes a callback for the matching ones.
type DownloadingHandler struct {
	Action   common.DownloadingAction
	Callback func(*common.DownloadingResponse) error
}

func (h *DownloadingHandler) Handle(m json.RawMessage) error {
	var v common.DownloadingResponse
	err := json.Unmarshal(m, &v)
	if err != nil {
		return err
	}
	if h.Action != "" && v.Action != h.Action {
		return nil
	}
	return h.Callback(&v)
}
