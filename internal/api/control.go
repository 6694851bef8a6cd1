package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

func parseTaskId(body json.RawMessage) (string, error) {
	var m common.InputTaskId
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if m.TaskId == "" {
		return "", errors.New("task_id is required")
	}
	return m.TaskId, nil
}

func (s *Api) startHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.StartParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_START, nil, err
	}
	if m.Folder != "" {
		ids, err := s.startFolder(m.Folder)
		if err != nil {
			return common.UPDATE_START, nil, err
		}
		return common.UPDATE_START, &common.StartResponse{TaskIds: ids}, nil
	}
	if m.TaskId == "" {
		return common.UPDATE_START, nil, errors.New("task_id or folder is required")
	}
	if err := s.eng.StartTask(m.TaskId); err != nil {
		return common.UPDATE_START, nil, err
	}
	return common.UPDATE_START, &common.StartResponse{TaskIds: []string{m.TaskId}}, nil
}

// startFolder queues every startable task filed under the folder,
// skipping tasks that are already running or settled.
func (s *Api) startFolder(folder string) ([]string, error) {
	tasks, err := s.store.GetTasksByFolder(folder)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, t := range tasks {
		err := s.eng.StartTask(t.Id)
		switch {
		case err == nil:
			ids = append(ids, t.Id)
		case errors.Is(err, dlmlib.ErrTaskAlreadyActive),
			errors.Is(err, dlmlib.ErrTaskTerminal):
		default:
			return nil, err
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no startable tasks in folder %q", folder)
	}
	s.log.Printf("started %d task(s) in folder %s\n", len(ids), folder)
	return ids, nil
}

func (s *Api) pauseHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	id, err := parseTaskId(body)
	if err != nil {
		return common.UPDATE_PAUSE, nil, err
	}
	if err := s.eng.PauseTask(id); err != nil {
		return common.UPDATE_PAUSE, nil, err
	}
	s.log.Printf("paused task %s\n", id)
	return common.UPDATE_PAUSE, &common.InputTaskId{TaskId: id}, nil
}

func (s *Api) resumeHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	id, err := parseTaskId(body)
	if err != nil {
		return common.UPDATE_RESUME, nil, err
	}
	if err := s.eng.ResumeTask(id); err != nil {
		return common.UPDATE_RESUME, nil, err
	}
	pool.AddTask(id, sconn.Conn)
	s.log.Printf("resumed task %s\n", id)
	return common.UPDATE_RESUME, &common.InputTaskId{TaskId: id}, nil
}

func (s *Api) retryHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	id, err := parseTaskId(body)
	if err != nil {
		return common.UPDATE_RETRY, nil, err
	}
	if err := s.eng.RetryTask(id); err != nil {
		return common.UPDATE_RETRY, nil, err
	}
	pool.AddTask(id, sconn.Conn)
	s.log.Printf("retrying task %s\n", id)
	return common.UPDATE_RETRY, &common.InputTaskId{TaskId: id}, nil
}

func (s *Api) removeHandler(_ *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.RemoveParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_REMOVE, nil, err
	}
	if m.TaskId == "" {
		return common.UPDATE_REMOVE, nil, errors.New("task_id is required")
	}
	if err := s.eng.RemoveTask(m.TaskId, m.DeleteFiles); err != nil {
		return common.UPDATE_REMOVE, nil, err
	}
	pool.RemoveTask(m.TaskId)
	s.log.Printf("removed task %s (delete_files=%v)\n", m.TaskId, m.DeleteFiles)
	return common.UPDATE_REMOVE, &common.InputTaskId{TaskId: m.TaskId}, nil
}
