package api

import (
	"encoding/json"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// attachHandler subscribes the calling connection to a task's streamed
// updates. A previously recorded critical error is replayed so a late
// attacher does not hang waiting for progress that will never come.
func (s *Api) attachHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	id, err := parseTaskId(body)
	if err != nil {
		return common.UPDATE_ATTACH, nil, err
	}
	t, err := s.eng.GetTask(id)
	if err != nil {
		return common.UPDATE_ATTACH, nil, err
	}

	pool.AddTask(id, sconn.Conn)
	if pErr := pool.GetError(id); pErr != nil && pErr.Type == server.ErrorTypeCritical {
		_ = sconn.Write(server.CreateError(pErr.Message))
	}
	return common.UPDATE_ATTACH, taskInfo(t), nil
}

func taskInfo(t *dlmlib.Task) *common.TaskInfo {
	return &common.TaskInfo{
		TaskId:        t.Id,
		Url:           t.Url,
		FileName:      t.FileName,
		State:         string(t.GetState()),
		ContentLength: dlmlib.ContentLength(t.TotalSize),
		Downloaded:    dlmlib.ContentLength(t.Downloaded()),
		Speed:         t.Speed,
		Progress:      t.Progress(),
		ErrorMessage:  t.ErrorMessage,
		Folder:        t.Folder,
		Partial:       t.Partial,
	}
}
