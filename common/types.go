package common

import "github.com/abdu1rhmaan/dlm/pkg/dlmlib"

type InputTaskId struct {
	TaskId string `json:"task_id"`
}

type AddParams struct {
	Url            string           `json:"url"`
	FileName       string           `json:"file_name,omitempty"`
	Folder         string           `json:"folder,omitempty"`
	OutputPath     string           `json:"output_path,omitempty"`
	MaxConnections int              `json:"max_connections,omitempty"`
	Headers        dlmlib.Headers   `json:"headers,omitempty"`
	Cookies        []dlmlib.Cookie  `json:"cookies,omitempty"`
	Referer        string           `json:"referer,omitempty"`
	UserAgent      string           `json:"user_agent,omitempty"`
	Ephemeral      bool             `json:"ephemeral,omitempty"`
}

type AddResponse struct {
	TaskId        string               `json:"task_id"`
	FileName      string               `json:"file_name"`
	ContentLength dlmlib.ContentLength `json:"content_length"`
	Resumable     bool                 `json:"resumable"`
}

// StartParams addresses tasks either singly or by folder.
type StartParams struct {
	TaskId string `json:"task_id,omitempty"`
	Folder string `json:"folder,omitempty"`
}

type StartResponse struct {
	TaskIds []string `json:"task_ids"`
}

type RemoveParams struct {
	TaskId      string `json:"task_id"`
	DeleteFiles bool   `json:"delete_files,omitempty"`
}

type ImportParams struct {
	Manifest *dlmlib.TaskManifest `json:"manifest"`
	Parts    []int                `json:"parts,omitempty"`
	Separate bool                 `json:"separate,omitempty"`
	Folder   string               `json:"folder,omitempty"`
}

type ImportResponse struct {
	TaskIds []string `json:"task_ids"`
}

type RecaptureParams struct {
	TaskId    string          `json:"task_id"`
	Url       string          `json:"url,omitempty"`
	Headers   dlmlib.Headers  `json:"headers,omitempty"`
	Cookies   []dlmlib.Cookie `json:"cookies,omitempty"`
	Referer   string          `json:"referer,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
}

type ListParams struct {
	ShowCompleted bool   `json:"show_completed"`
	ShowPending   bool   `json:"show_pending"`
	Folder        string `json:"folder,omitempty"`
}

type TaskInfo struct {
	TaskId        string               `json:"task_id"`
	Url           string               `json:"url"`
	FileName      string               `json:"file_name"`
	State         string               `json:"state"`
	ContentLength dlmlib.ContentLength `json:"content_length"`
	Downloaded    dlmlib.ContentLength `json:"downloaded"`
	Speed         int64                `json:"speed"`
	Progress      int                  `json:"progress"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	Folder        string               `json:"folder,omitempty"`
	Partial       bool                 `json:"partial,omitempty"`
}

type ListResponse struct {
	Tasks []*TaskInfo `json:"tasks"`
}

type DownloadingResponse struct {
	TaskId string            `json:"task_id"`
	Action DownloadingAction `json:"action"`
	State  string `json:"state,omitempty"`
	Value  int64  `json:"value,omitempty"`
	Total  int64  `json:"total,omitempty"`
	Speed  int64  `json:"speed,omitempty"`
	Ioff   int64  `json:"ioff,omitempty"`
	Foff   int64  `json:"foff,omitempty"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
	Url    string `json:"url,omitempty"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
