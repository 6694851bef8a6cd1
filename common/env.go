// Package common provides shared types and constants used across the
// dlm client-server communication layer.
package common

// Environment variable names for configuration.
const (
	// SocketPathEnv is the environment variable for custom socket path.
	SocketPathEnv = "DLM_SOCKET_PATH"

	// TCPPortEnv is the environment variable for custom TCP port.
	TCPPortEnv = "DLM_TCP_PORT"

	// ForceTCPEnv is the environment variable to force TCP connections.
	ForceTCPEnv = "DLM_FORCE_TCP"

	// PipeNameEnv is the environment variable for a custom Windows
	// named pipe.
	PipeNameEnv = "DLM_PIPE_NAME"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "DLM_DEBUG"

	// RootDirEnv is the environment variable for the engine's root
	// directory (store, workspaces, default download destination).
	RootDirEnv = "DLM_ROOT_DIR"
)
