package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

// CommandLauncherOptions describes how erizo workers are started.
type CommandLauncherOptions struct {
	// Command is the worker executable and its leading arguments.
	Command   []string
	Purpose   domain.Purpose
	PrivateIP string
	PublicIP  string
	// LogDir receives one erizo-<id>.log file per worker.
	LogDir  string
	Journal *Journal
	Logger  *zap.Logger
}

// CommandLauncher spawns workers as detached child processes invoked as
// `<command...> <id> <purpose> <privateIP> <publicIP>`.
type CommandLauncher struct {
	command   []string
	purpose   domain.Purpose
	privateIP string
	publicIP  string
	logDir    string
	journal   *Journal
	logger    *zap.Logger
}

func NewCommandLauncher(opts CommandLauncherOptions) (*CommandLauncher, error) {
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, fmt.Errorf("%w: worker command is required", domain.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logDir := opts.LogDir
	if logDir == "" {
		logDir = domain.DefaultWorkerLogDir
	}
	return &CommandLauncher{
		command:   append([]string(nil), opts.Command...),
		purpose:   opts.Purpose,
		privateIP: opts.PrivateIP,
		publicIP:  opts.PublicIP,
		logDir:    logDir,
		journal:   opts.Journal,
		logger:    logger.Named("launcher"),
	}, nil
}

// Args returns the argument vector passed to a worker, without the executable.
func (l *CommandLauncher) Args(workerID string) []string {
	args := append([]string(nil), l.command[1:]...)
	return append(args, workerID, string(l.purpose), l.privateIP, l.publicIP)
}

// LogPath returns the file that receives a worker's stdout and stderr.
func (l *CommandLauncher) LogPath(workerID string) string {
	return filepath.Join(l.logDir, "erizo-"+workerID+".log")
}

func (l *CommandLauncher) Launch(workerID string) (domain.WorkerHandle, error) {
	if err := os.MkdirAll(l.logDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure worker log dir: %w", err)
	}
	out, err := os.OpenFile(l.LogPath(workerID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open worker log: %w", err)
	}
	defer out.Close()

	cmd := exec.Command(l.command[0], l.Args(workerID)...)
	cmd.Stdout = out
	cmd.Stderr = out
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", classifyStartError(err))
	}

	h := &Handle{
		id:   workerID,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go l.wait(cmd, h)
	return h, nil
}

// wait journals the worker off the caller's path, since a journal write
// syncs to disk, then reaps it.
func (l *CommandLauncher) wait(cmd *exec.Cmd, h *Handle) {
	if err := l.journal.Record(h.id, h.pid); err != nil && !errors.Is(err, ErrJournalClosed) {
		l.logger.Warn("journal record failed", telemetry.WorkerIDField(h.id), zap.Error(err))
	}
	err := cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	if err := l.journal.Forget(h.id); err != nil && !errors.Is(err, ErrJournalClosed) {
		l.logger.Warn("journal forget failed", telemetry.WorkerIDField(h.id), zap.Error(err))
	}
	h.finish(code)
}

// Handle tracks one spawned worker process.
type Handle struct {
	id   string
	pid  int
	done chan struct{}

	mu       sync.Mutex
	exitCode int
}

func (h *Handle) PID() int {
	return h.pid
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Kill sends SIGTERM to the worker's process group and returns immediately.
func (h *Handle) Kill() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	return terminateGroup(h.pid)
}

func (h *Handle) finish(code int) {
	h.mu.Lock()
	h.exitCode = code
	h.mu.Unlock()
	close(h.done)
}

func classifyStartError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, err.Error())
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, err.Error())
	}
	return err
}

var _ domain.WorkerLauncher = (*CommandLauncher)(nil)
var _ domain.WorkerHandle = (*Handle)(nil)
