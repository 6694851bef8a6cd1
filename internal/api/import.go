package api

import (
	"encoding/json"
	"errors"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/internal/store"
)

// importHandler admits tasks from a shared manifest. With parts given,
// only those part numbers are assigned to this node; with separate set,
// each part becomes its own task.
func (s *Api) importHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.ImportParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_IMPORT, nil, err
	}
	if m.Manifest == nil {
		return common.UPDATE_IMPORT, nil, errors.New("manifest is required")
	}

	tasks, err := s.eng.ImportPartial(m.Manifest, m.Parts, m.Separate, m.Folder)
	if err != nil {
		return common.UPDATE_IMPORT, nil, err
	}

	if m.Folder != "" {
		if ferr := s.store.SaveFolder(&store.Folder{Name: m.Folder}); ferr != nil {
			s.log.Printf("folder %s: %v\n", m.Folder, ferr)
		}
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		pool.AddTask(t.Id, sconn.Conn)
		ids = append(ids, t.Id)
	}
	s.log.Printf("imported %d task(s) from manifest %s\n", len(ids), m.Manifest.TaskId)
	return common.UPDATE_IMPORT, &common.ImportResponse{TaskIds: ids}, nil
}
