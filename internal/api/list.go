package api

import (
	"encoding/json"
	"sort"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// listHandler returns the task table. Completed and pending tasks are
// hidden unless asked for; folder narrows the listing.
func (s *Api) listHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.ListParams
	if len(body) > 0 {
		if err := json.Unmarshal(body, &m); err != nil {
			return common.UPDATE_LIST, nil, err
		}
	}

	tasks := s.eng.GetTasks()
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	out := make([]*common.TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		if m.Folder != "" && t.Folder != m.Folder {
			continue
		}
		switch t.GetState() {
		case dlmlib.StateCompleted:
			if !m.ShowCompleted {
				continue
			}
		case dlmlib.StateQueued, dlmlib.StateWaiting:
			if !m.ShowPending && t.Downloaded() == 0 {
				continue
			}
		}
		out = append(out, taskInfo(t))
	}
	return common.UPDATE_LIST, &common.ListResponse{Tasks: out}, nil
}
