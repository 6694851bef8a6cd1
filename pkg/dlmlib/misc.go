package dlmlib

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Size unit constants for byte conversions.
const (
	// B represents one byte.
	B int64 = 1
	// KB represents one kilobyte (1024 bytes).
	KB = 1024 * B
	// MB represents one megabyte (1024 kilobytes).
	MB = 1024 * KB
	// GB represents one gigabyte (1024 megabytes).
	GB = 1024 * MB
	// TB represents one terabyte (1024 gigabytes).
	TB = 1024 * GB
)

const (
	// DEF_CHUNK_SIZE is the copy-cycle chunk used by segment workers.
	DEF_CHUNK_SIZE = 64 * KB
	// CHECKPOINT_INTERVAL is how many bytes a worker may write between
	// fsync+checkpoint advances.
	CHECKPOINT_INTERVAL = 4 * MB
	// HASH_SPAN is the number of bytes hashed at each edge of a
	// completed segment.
	HASH_SPAN = 512 * KB
	// MIN_SPLIT_REMAINDER is the smallest remainder worth splitting
	// during rebalance.
	MIN_SPLIT_REMAINDER = 8 * MB
	// DISK_SPACE_MARGIN is added to a task's total size for the
	// free-space precheck.
	DISK_SPACE_MARGIN = 50 * MB

	// MAX_ADAPTIVE_CONNS caps the monitor's connection growth.
	MAX_ADAPTIVE_CONNS = 8

	DEF_CONCURRENCY = 1
	DEF_USER_AGENT  = "Dlm/1.0"

	// ConnectTimeout and ReadTimeout bound adapter HTTP requests.
	ConnectTimeout = 10 * time.Second
	ReadTimeout    = 30 * time.Second
	// DiscoveryTimeout bounds the size/range probe before admission.
	DiscoveryTimeout = 10 * time.Second
	// CaptureDiscoveryTimeout is the shorter probe budget used for
	// browser-origin background probes.
	CaptureDiscoveryTimeout = 5 * time.Second
)

// RootDirEnv is the environment variable name used to override the
// default project root directory.
const RootDirEnv = "DLM_ROOT_DIR"

var (
	// RootDir is the absolute path to the dlm project root.
	RootDir string
	// WorkspaceDir is the hidden directory holding per-task workspaces.
	WorkspaceDir string
	// DownloadsDir is the default final destination for completed files.
	DownloadsDir string
	// StorePath is the location of the repository store.
	StorePath string
)

func init() {
	dir := os.Getenv(RootDirEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, "dlm")
	}
	if err := setRootDir(dir); err != nil {
		panic(err)
	}
}

func setRootDir(dir string) error {
	if dir == "" {
		return errors.New("root dir is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	RootDir = abs
	WorkspaceDir = filepath.Join(abs, ".workspace")
	DownloadsDir = filepath.Join(abs, "downloads")
	StorePath = filepath.Join(abs, "dlm.db")
	if err := os.MkdirAll(WorkspaceDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(DownloadsDir, 0755)
}

// SetRootDir points the engine at a different project root. It creates
// the workspace and downloads directories if they do not exist.
func SetRootDir(dir string) error {
	return setRootDir(dir)
}

// GetPath joins a directory and file name using the OS-specific path separator.
func GetPath(directory, file string) string {
	return filepath.Join(directory, file)
}

// NewTaskId returns a new opaque task identifier.
func NewTaskId() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func parseFileName(req *http.Request, cd string) (fn string) {
	if cd != "" {
		_, p, err := mime.ParseMediaType(cd)
		if err == nil {
			fn = p["filename"]
		}
	}
	if fn == "" && req != nil {
		pa := strings.Split(req.URL.Path, "/")
		fn = pa[len(pa)-1]
	}
	fn = SanitizeFilename(fn)
	return
}

// SanitizeFilename removes or replaces characters invalid on Windows/Unix
// filesystems. It preserves the file extension and handles URL-encoded
// characters.
func SanitizeFilename(name string) string {
	if name == "" {
		return name
	}

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	// Invalid chars on Windows: < > : " / \ | ? *
	invalidChars := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}
	for _, char := range invalidChars {
		name = strings.ReplaceAll(name, char, "_")
	}

	var result strings.Builder
	for _, r := range name {
		if r >= 32 {
			result.WriteRune(r)
		}
	}
	name = result.String()

	baseName, ext := name, ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		baseName, ext = name[:idx], name[idx:]
	}

	reserved := []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
	}
	for _, r := range reserved {
		if strings.EqualFold(baseName, r) {
			baseName = "_" + baseName
			break
		}
	}
	name = baseName + ext

	name = strings.Trim(name, " .")

	if name == "" {
		name = "download"
	}
	return name
}

func dirExists(name string) bool {
	_, err := os.ReadDir(name)
	return !os.IsNotExist(err)
}

// fileExists checks if a regular file exists at the given path.
func fileExists(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !stat.IsDir()
}

func wlog(l *log.Logger, s string, a ...any) {
	if l == nil {
		return
	}
	esc := "\n"
	switch runtime.GOOS {
	case "windows":
		esc = "\r\n"
	}
	l.Printf(s+esc, a...)
}
