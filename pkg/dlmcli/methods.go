package dlmcli

import (
	"encoding/json"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

func invoke[T any](c *Client, method common.UpdateType, message any) (*T, error) {
	resp, err := c.invoke(method, message)
	if err != nil {
		return nil, err
	}
	var d T
	return &d, json.Unmarshal(resp, &d)
}

// AddOpts carries the optional attributes of an Add call.
type AddOpts struct {
	FileName       string
	Folder         string
	OutputPath     string
	MaxConnections int
	Headers        dlmlib.Headers
	Cookies        []dlmlib.Cookie
	Referer        string
	UserAgent      string
	Ephemeral      bool
}

// Add submits a new download and subscribes this connection to its
// streamed updates.
func (c *Client) Add(url string, opts *AddOpts) (*common.AddResponse, error) {
	if opts == nil {
		opts = &AddOpts{}
	}
	return invoke[common.AddResponse](c, common.UPDATE_ADD, &common.AddParams{
		Url:            url,
		FileName:       opts.FileName,
		Folder:         opts.Folder,
		OutputPath:     opts.OutputPath,
		MaxConnections: opts.MaxConnections,
		Headers:        opts.Headers,
		Cookies:        opts.Cookies,
		Referer:        opts.Referer,
		UserAgent:      opts.UserAgent,
		Ephemeral:      opts.Ephemeral,
	})
}

func (c *Client) Start(taskId string) error {
	_, err := c.invoke(common.UPDATE_START, &common.StartParams{TaskId: taskId})
	return err
}

// StartFolder queues every startable task filed under the folder and
// returns their ids.
func (c *Client) StartFolder(folder string) (*common.StartResponse, error) {
	return invoke[common.StartResponse](c, common.UPDATE_START, &common.StartParams{Folder: folder})
}

func (c *Client) Pause(taskId string) error {
	_, err := c.invoke(common.UPDATE_PAUSE, &common.InputTaskId{TaskId: taskId})
	return err
}

func (c *Client) Resume(taskId string) error {
	_, err := c.invoke(common.UPDATE_RESUME, &common.InputTaskId{TaskId: taskId})
	return err
}

func (c *Client) Retry(taskId string) error {
	_, err := c.invoke(common.UPDATE_RETRY, &common.InputTaskId{TaskId: taskId})
	return err
}

func (c *Client) Remove(taskId string, deleteFiles bool) error {
	_, err := c.invoke(common.UPDATE_REMOVE, &common.RemoveParams{
		TaskId:      taskId,
		DeleteFiles: deleteFiles,
	})
	return err
}

// Import admits tasks from a shared manifest.
func (c *Client) Import(m *dlmlib.TaskManifest, parts []int, separate bool, folder string) (*common.ImportResponse, error) {
	return invoke[common.ImportResponse](c, common.UPDATE_IMPORT, &common.ImportParams{
		Manifest: m,
		Parts:    parts,
		Separate: separate,
		Folder:   folder,
	})
}

// Recapture replaces an expired session on a paused task.
func (c *Client) Recapture(p *common.RecaptureParams) error {
	_, err := c.invoke(common.UPDATE_RECAPTURE, p)
	return err
}

// Attach subscribes this connection to a task's streamed updates and
// returns its current state.
func (c *Client) Attach(taskId string) (*common.TaskInfo, error) {
	return invoke[common.TaskInfo](c, common.UPDATE_ATTACH, &common.InputTaskId{TaskId: taskId})
}

type ListOpts common.ListParams

func (c *Client) List(opts *ListOpts) (*common.ListResponse, error) {
	if opts == nil {
		opts = &ListOpts{}
	}
	return invoke[common.ListResponse](c, common.UPDATE_LIST, (*common.ListParams)(opts))
}

// GetDaemonVersion returns the daemon's reported version.
func (c *Client) GetDaemonVersion() (*common.VersionResponse, error) {
	return invoke[common.VersionResponse](c, common.UPDATE_VERSION, nil)
}

// StopDaemon asks the daemon to shut down.
func (c *Client) StopDaemon() error {
	_, err := c.invoke(common.UPDATE_SHUTDOWN, nil)
	return err
}
