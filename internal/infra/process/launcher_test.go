//go:build unix

package process

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"erizoagent/internal/domain"
)

func TestCommandLauncher_Args(t *testing.T) {
	l, err := NewCommandLauncher(CommandLauncherOptions{
		Command:   []string{"node", "./erizoJS.js"},
		Purpose:   domain.PurposeWebRTC,
		PrivateIP: "10.0.0.2",
		PublicIP:  "1.2.3.4",
		LogDir:    "/var/log/erizo",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"./erizoJS.js", "w1", "webrtc", "10.0.0.2", "1.2.3.4"}, l.Args("w1"))
	require.Equal(t, "/var/log/erizo/erizo-w1.log", l.LogPath("w1"))
}

func TestNewCommandLauncher_RequiresCommand(t *testing.T) {
	_, err := NewCommandLauncher(CommandLauncherOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCommandLauncher_WritesLogAndReportsExit(t *testing.T) {
	dir := t.TempDir()
	l, err := NewCommandLauncher(CommandLauncherOptions{
		Command: []string{"/bin/sh", "-c", `echo "started $0 $1"; exit 3`},
		Purpose: domain.PurposeFile,
		LogDir:  dir,
	})
	require.NoError(t, err)

	h, err := l.Launch("w1")
	require.NoError(t, err)
	require.Positive(t, h.PID())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	require.Equal(t, 3, h.ExitCode())

	data, err := os.ReadFile(filepath.Join(dir, "erizo-w1.log"))
	require.NoError(t, err)
	require.Equal(t, "started w1 file", strings.TrimSpace(string(data)))
}

func TestCommandLauncher_KillTerminatesGroup(t *testing.T) {
	journal, err := OpenJournal(filepath.Join(t.TempDir(), "workers.db"), nil)
	require.NoError(t, err)
	defer journal.Close()

	l, err := NewCommandLauncher(CommandLauncherOptions{
		Command: []string{"/bin/sh", "-c", "sleep 30"},
		Purpose: domain.PurposeAudio,
		LogDir:  t.TempDir(),
		Journal: journal,
	})
	require.NoError(t, err)

	h, err := l.Launch("w1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		entries, err := journal.Entries()
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, h.Kill())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker ignored SIGTERM")
	}
	require.NoError(t, h.Kill())

	require.Eventually(t, func() bool {
		entries, err := journal.Entries()
		return err == nil && len(entries) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCommandLauncher_MissingExecutable(t *testing.T) {
	l, err := NewCommandLauncher(CommandLauncherOptions{
		Command: []string{filepath.Join(t.TempDir(), "missing")},
		LogDir:  t.TempDir(),
	})
	require.NoError(t, err)

	_, err = l.Launch("w1")
	require.ErrorIs(t, err, domain.ErrExecutableNotFound)
}

func TestCommandLauncher_LaunchDoesNotWaitForJournal(t *testing.T) {
	journal, err := OpenJournal(filepath.Join(t.TempDir(), "workers.db"), nil)
	require.NoError(t, err)
	defer journal.Close()

	l, err := NewCommandLauncher(CommandLauncherOptions{
		Command: []string{"/bin/sh", "-c", "sleep 30"},
		Purpose: domain.PurposeWebRTC,
		LogDir:  t.TempDir(),
		Journal: journal,
	})
	require.NoError(t, err)

	// An open write transaction stalls every journal write.
	tx, err := journal.db.Begin(true)
	require.NoError(t, err)

	launched := make(chan domain.WorkerHandle, 1)
	go func() {
		h, err := l.Launch("w1")
		if err == nil {
			launched <- h
		}
		close(launched)
	}()

	var h domain.WorkerHandle
	select {
	case h = <-launched:
		require.NotNil(t, h)
	case <-time.After(2 * time.Second):
		_ = tx.Rollback()
		t.Fatal("launch waited on the journal")
	}
	require.NoError(t, tx.Rollback())

	require.Eventually(t, func() bool {
		entries, err := journal.Entries()
		return err == nil && entries["w1"].PID == h.PID()
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, h.Kill())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker ignored SIGTERM")
	}
}
