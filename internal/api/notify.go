package api

import (
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// BindHandlers points the engine's notification hooks at the connection
// pool and the JSON-RPC push notifier. The engine holds the Handlers
// pointer, so filling the fields before Server.Start wires every
// subscriber transport at once.
func BindHandlers(h *dlmlib.Handlers, pool *server.Pool, notifier *server.RPCNotifier) {
	h.StateChangeHandler = func(taskId string, state dlmlib.TaskState) {
		pool.Broadcast(taskId, server.MakeResult(common.UPDATE_DOWNLOADING, &common.DownloadingResponse{
			TaskId: taskId,
			Action: common.StateChange,
			State:  string(state),
		}))
		notifier.Broadcast("task.state", &server.TaskStateNotification{
			TaskId: taskId,
			State:  string(state),
		})
	}

	h.ProgressHandler = func(taskId string, downloaded, total, speed int64) {
		pool.Broadcast(taskId, server.MakeResult(common.UPDATE_DOWNLOADING, &common.DownloadingResponse{
			TaskId: taskId,
			Action: common.DownloadProgress,
			Value:  downloaded,
			Total:  total,
			Speed:  speed,
		}))
		notifier.Broadcast("task.progress", &server.TaskProgressNotification{
			TaskId:          taskId,
			CompletedLength: downloaded,
			TotalLength:     total,
			Speed:           speed,
		})
	}

	h.SpawnSegmentHandler = func(taskId string, ioff, foff int64) {
		pool.Broadcast(taskId, server.MakeResult(common.UPDATE_DOWNLOADING, &common.DownloadingResponse{
			TaskId: taskId,
			Action: common.SpawnSegment,
			Ioff:   ioff,
			Foff:   foff,
		}))
	}

	h.CompleteHandler = func(taskId, path string) {
		pool.Broadcast(taskId, server.MakeResult(common.UPDATE_DOWNLOADING, &common.DownloadingResponse{
			TaskId: taskId,
			Action: common.DownloadComplete,
			Path:   path,
		}))
		notifier.Broadcast("task.complete", &server.TaskCompleteNotification{
			TaskId: taskId,
			Path:   path,
		})
		pool.RemoveTask(taskId)
	}

	h.ErrorHandler = func(taskId string, err error) {
		pool.WriteError(taskId, server.ErrorTypeCritical, err.Error())
		pool.Broadcast(taskId, server.MakeResult(common.UPDATE_DOWNLOADING, &common.DownloadingResponse{
			TaskId: taskId,
			Action: common.DownloadFailed,
			Error:  err.Error(),
		}))
		notifier.Broadcast("task.error", &server.TaskErrorNotification{
			TaskId: taskId,
			Error:  err.Error(),
		})
	}

	h.SessionRenewalHandler = func(taskId, url string) {
		pool.WriteError(taskId, server.ErrorTypeWarning, "session expired, renewal required")
		pool.Broadcast(taskId, server.MakeResult(common.UPDATE_DOWNLOADING, &common.DownloadingResponse{
			TaskId: taskId,
			Action: common.SessionRenewal,
			Url:    url,
		}))
		notifier.Broadcast("task.sessionRenewal", &server.SessionRenewalNotification{
			TaskId: taskId,
			Url:    url,
		})
	}
}
