package common

import "time"

// DefaultDialTimeout bounds client connection attempts to the daemon.
const DefaultDialTimeout = 2 * time.Second

type UpdateType string

const (
	UPDATE_ADD         UpdateType = "add"
	UPDATE_DOWNLOADING UpdateType = "downloading"
	UPDATE_ATTACH      UpdateType = "attach"
	UPDATE_START       UpdateType = "start"
	UPDATE_PAUSE       UpdateType = "pause"
	UPDATE_RESUME      UpdateType = "resume"
	UPDATE_RETRY       UpdateType = "retry"
	UPDATE_REMOVE      UpdateType = "remove"
	UPDATE_IMPORT      UpdateType = "import"
	UPDATE_RECAPTURE   UpdateType = "recapture"
	UPDATE_LIST        UpdateType = "list"
	UPDATE_VERSION     UpdateType = "version"
	UPDATE_SHUTDOWN    UpdateType = "shutdown"
)

// DownloadingAction identifies the sub-event of a streamed
// "downloading" update.
type DownloadingAction string

const (
	StateChange      DownloadingAction = "state_change"
	DownloadProgress DownloadingAction = "download_progress"
	SpawnSegment     DownloadingAction = "spawn_segment"
	DownloadComplete DownloadingAction = "download_complete"
	DownloadFailed   DownloadingAction = "download_failed"
	SessionRenewal   DownloadingAction = "session_renewal"
)

// TCPHost is the loopback host used by the TCP fallback transport.
const TCPHost = "127.0.0.1"

// DefaultTCPPort is the daemon's TCP fallback port; the capture/RPC
// web endpoint listens on the next port up.
const DefaultTCPPort = 4320

// MaxMessageSize bounds a single framed message on the client side to
// keep a corrupt length prefix from allocating gigabytes.
const MaxMessageSize = 32 << 20

// Exit codes shared by every CLI front-end.
const (
	ExitOK          = 0
	ExitUserError   = 1
	ExitIOError     = 2
	ExitInterrupted = 130
)
