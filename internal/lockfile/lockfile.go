// Package lockfile keeps a single admin web server per config directory.
// The lock holds "port|pid"; a lock whose process is gone is stale.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid

	// ErrAlreadyRunning is returned when a live server holds the lock
	ErrAlreadyRunning = errors.New("another authip server is already running")
)

// Info is the content of a lockfile.
type Info struct {
	Port int
	PID  int
}

type Lock struct {
	path string
	info Info
}

// Path returns the lockfile location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, constants.ServerLockfileName)
}

// Read parses the lockfile at path.
func Read(path string) (Info, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}

	portStr, pidStr, ok := strings.Cut(strings.TrimSpace(string(content)), "|")
	if !ok {
		return Info{}, errors.New("lockfile is malformed")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Info{}, fmt.Errorf("invalid port %q in lockfile", portStr)
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid < 1 {
		return Info{}, fmt.Errorf("invalid process ID %q in lockfile", pidStr)
	}
	return Info{Port: port, PID: pid}, nil
}

// Alive reports whether the process recorded in info is still an authip
// process.
func Alive(info Info) bool {
	process, err := findProcessFunc(info.PID)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.AppName)
}

// Acquire writes the lockfile for a server on port. A live holder yields
// ErrAlreadyRunning; stale or malformed locks are replaced.
func Acquire(dir string, port int) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := Path(dir)
	pid := getpidFunc()

	if existing, err := Read(path); err == nil {
		if existing.PID != pid && Alive(existing) {
			return nil, fmt.Errorf("%w (pid %d, port %d)", ErrAlreadyRunning, existing.PID, existing.Port)
		}
		logger.Info("Replacing stale server lock", "path", path, "pid", existing.PID)
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Replacing unreadable server lock", "path", path, "error", err)
	}

	info := Info{Port: port, PID: pid}
	content := fmt.Sprintf("%d|%d", info.Port, info.PID)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path, info: info}, nil
}

// Release removes the lockfile if it still belongs to this lock.
func (l *Lock) Release() error {
	current, err := Read(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if current.PID != l.info.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

func (l *Lock) Info() Info {
	return l.info
}
