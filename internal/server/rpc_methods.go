package server

import (
	"context"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// Custom JSON-RPC error codes for task operations.
const (
	codeTaskNotFound  = jrpc2.Code(-32001)
	codeTaskNotActive = jrpc2.Code(-32002)
	codeInvalidParams = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means RPC disabled)
	ListenAll bool   // If true, bind to 0.0.0.0 instead of 127.0.0.1
	Version   string // Daemon version
}

// RPCServer manages the JSON-RPC 2.0 bridge and method handlers.
type RPCServer struct {
	bridge    jhttp.Bridge
	methods   handler.Map
	secret    string
	listenAll bool
	version   string
	eng       *dlmlib.Engine
	notifier  *RPCNotifier
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
}

// RPCAddParams is the input for task.add.
type RPCAddParams struct {
	URL         string         `json:"url"`
	FileName    string         `json:"fileName,omitempty"`
	Dir         string         `json:"dir,omitempty"`
	Headers     dlmlib.Headers `json:"headers,omitempty"`
	Connections int            `json:"connections,omitempty"`
}

// RPCAddResult is the response for task.add.
type RPCAddResult struct {
	TaskId string `json:"taskId"`
}

// TaskIdParam is a common input with just a task id.
type TaskIdParam struct {
	TaskId string `json:"taskId"`
}

// RPCStatusResult is the response for task.status.
type RPCStatusResult struct {
	TaskId          string `json:"taskId"`
	Status          string `json:"status"`
	TotalLength     int64  `json:"totalLength"`
	CompletedLength int64  `json:"completedLength"`
	Percentage      int    `json:"percentage"`
	Speed           int64  `json:"speed"`
	FileName        string `json:"fileName"`
	Error           string `json:"error,omitempty"`
}

// RPCListParams is the input for task.list.
type RPCListParams struct {
	Status string `json:"status,omitempty"` // "active", "waiting", "complete", "all" (default)
}

// RPCListResult is the response for task.list.
type RPCListResult struct {
	Tasks []*RPCStatusResult `json:"tasks"`
}

// EmptyResult is a placeholder for methods that return no data.
type EmptyResult struct{}

// NewRPCServer creates a new RPCServer with method handlers and HTTP bridge.
func NewRPCServer(cfg *RPCConfig, eng *dlmlib.Engine, notifier *RPCNotifier) *RPCServer {
	rs := &RPCServer{
		secret:    cfg.Secret,
		listenAll: cfg.ListenAll,
		version:   cfg.Version,
		eng:       eng,
		notifier:  notifier,
	}

	rs.methods = handler.Map{
		"system.getVersion": handler.New(rs.systemGetVersion),
		"task.add":          handler.New(rs.taskAdd),
		"task.pause":        handler.New(rs.taskPause),
		"task.resume":       handler.New(rs.taskResume),
		"task.retry":        handler.New(rs.taskRetry),
		"task.remove":       handler.New(rs.taskRemove),
		"task.status":       handler.New(rs.taskStatus),
		"task.list":         handler.New(rs.taskList),
	}

	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

// Bridge returns the HTTP POST endpoint for the JSON-RPC surface.
func (rs *RPCServer) Bridge() http.Handler {
	return rs.bridge
}

// ServeWS upgrades the request to a websocket and runs a jrpc2 server
// over it. Push notifications flow through the notifier for as long as
// the connection lives.
func (rs *RPCServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(rs.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)
	rs.notifier.Register(srv)
	defer rs.notifier.Unregister(srv)
	_ = srv.Wait()
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: rs.version}, nil
}

// taskAdd creates a new download from a URL.
func (rs *RPCServer) taskAdd(_ context.Context, p *RPCAddParams) (*RPCAddResult, error) {
	if p.URL == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: url"}
	}
	session := dlmlib.NewSession("", "", p.Headers, nil)
	t, err := rs.eng.AddTask(p.URL, &dlmlib.AddTaskOpts{
		FileName:       p.FileName,
		OutputPath:     p.Dir,
		MaxConnections: p.Connections,
		Session:        session,
		Source:         "rpc",
	})
	if err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	return &RPCAddResult{TaskId: t.Id}, nil
}

// taskPause pauses an active task.
func (rs *RPCServer) taskPause(_ context.Context, p *TaskIdParam) (*EmptyResult, error) {
	if err := rs.eng.PauseTask(p.TaskId); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

// taskResume resumes a paused task.
func (rs *RPCServer) taskResume(_ context.Context, p *TaskIdParam) (*EmptyResult, error) {
	if err := rs.eng.ResumeTask(p.TaskId); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

// taskRetry re-queues a failed or completed task.
func (rs *RPCServer) taskRetry(_ context.Context, p *TaskIdParam) (*EmptyResult, error) {
	if err := rs.eng.RetryTask(p.TaskId); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

// taskRemove removes a task, keeping its files.
func (rs *RPCServer) taskRemove(_ context.Context, p *TaskIdParam) (*EmptyResult, error) {
	if err := rs.eng.RemoveTask(p.TaskId, false); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

// taskStatus returns the status of a task.
func (rs *RPCServer) taskStatus(_ context.Context, p *TaskIdParam) (*RPCStatusResult, error) {
	t, err := rs.eng.GetTask(p.TaskId)
	if err != nil {
		return nil, rpcError(err)
	}
	return taskResult(t), nil
}

// taskList returns tasks, optionally filtered by status.
func (rs *RPCServer) taskList(_ context.Context, p *RPCListParams) (*RPCListResult, error) {
	status := p.Status
	if status == "" {
		status = "all"
	}

	tasks := rs.eng.GetTasks()
	out := make([]*RPCStatusResult, 0, len(tasks))
	for _, t := range tasks {
		switch status {
		case "active":
			if t.GetState() != dlmlib.StateDownloading {
				continue
			}
		case "complete":
			if t.GetState() != dlmlib.StateCompleted {
				continue
			}
		case "waiting":
			switch t.GetState() {
			case dlmlib.StateQueued, dlmlib.StateWaiting, dlmlib.StatePaused:
			default:
				continue
			}
		}
		out = append(out, taskResult(t))
	}
	return &RPCListResult{Tasks: out}, nil
}

func taskResult(t *dlmlib.Task) *RPCStatusResult {
	return &RPCStatusResult{
		TaskId:          t.Id,
		Status:          string(t.GetState()),
		TotalLength:     t.TotalSize,
		CompletedLength: t.Downloaded(),
		Percentage:      t.Progress(),
		Speed:           t.Speed,
		FileName:        t.FileName,
		Error:           t.ErrorMessage,
	}
}

func rpcError(err error) error {
	switch err {
	case dlmlib.ErrTaskNotFound:
		return &jrpc2.Error{Code: codeTaskNotFound, Message: "task not found"}
	case dlmlib.ErrTaskNotActive, dlmlib.ErrTaskAlreadyActive, dlmlib.ErrTaskTerminal:
		return &jrpc2.Error{Code: codeTaskNotActive, Message: err.Error()}
	}
	return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
