package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	psprocess "github.com/shirou/gopsutil/process"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"erizoagent/internal/infra/telemetry"
)

const workersBucketName = "workers"

// startSkew absorbs the coarse resolution of kernel process start times.
const startSkew = 2 * time.Second

var ErrJournalClosed = errors.New("worker journal is closed")

// JournalEntry is what the journal remembers about a running worker.
type JournalEntry struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
}

// Journal persists the pids of spawned workers. Workers run detached in their
// own process group and survive an agent crash; the journal lets the next
// agent on the host terminate them before starting its own pool.
//
// A nil *Journal is valid and records nothing.
type Journal struct {
	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
	logger *zap.Logger
}

func OpenJournal(path string, logger *zap.Logger) (*Journal, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(workersBucketName)); err != nil {
			return fmt.Errorf("create workers bucket: %w", err)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, logger: logger.Named("journal")}, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

// Record remembers a freshly started worker.
func (j *Journal) Record(workerID string, pid int) error {
	if j == nil {
		return nil
	}
	value, err := json.Marshal(JournalEntry{PID: pid, StartedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return j.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(workersBucketName)).Put([]byte(workerID), value)
	})
}

// Forget drops a worker that has exited.
func (j *Journal) Forget(workerID string) error {
	if j == nil {
		return nil
	}
	return j.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(workersBucketName)).Delete([]byte(workerID))
	})
}

func (j *Journal) Entries() (map[string]JournalEntry, error) {
	entries := make(map[string]JournalEntry)
	if j == nil {
		return entries, nil
	}
	err := j.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(workersBucketName)).ForEach(func(key, value []byte) error {
			var entry JournalEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("decode journal entry %s: %w", key, err)
			}
			entries[string(key)] = entry
			return nil
		})
	})
	return entries, err
}

// ReapOrphans terminates every journaled worker whose process group is still
// alive and clears the journal. It returns the number of groups signalled.
func (j *Journal) ReapOrphans() (int, error) {
	if j == nil {
		return 0, nil
	}
	entries, err := j.Entries()
	if err != nil {
		return 0, err
	}
	reaped := 0
	for id, entry := range entries {
		if !groupLeaderAlive(entry.PID) {
			continue
		}
		if !startedBy(entry) {
			j.logger.Info("skipping reused worker pid",
				telemetry.WorkerIDField(id),
				zap.Int("pid", entry.PID),
				zap.Time("startedAt", entry.StartedAt),
			)
			continue
		}
		if err := terminateGroup(entry.PID); err != nil {
			j.logger.Warn("orphaned worker kill failed",
				telemetry.WorkerIDField(id),
				zap.Int("pid", entry.PID),
				zap.Error(err),
			)
			continue
		}
		reaped++
		j.logger.Info("terminated orphaned worker",
			telemetry.EventField(telemetry.EventOrphanReaped),
			telemetry.WorkerIDField(id),
			zap.Int("pid", entry.PID),
			zap.Time("startedAt", entry.StartedAt),
		)
	}
	err = j.update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(workersBucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(workersBucketName))
		return err
	})
	return reaped, err
}

// startedBy reports whether the process now holding entry.PID is the one
// journaled: a worker is recorded after it starts, a reused pid starts later.
func startedBy(entry JournalEntry) bool {
	if entry.StartedAt.IsZero() {
		return false
	}
	proc, err := psprocess.NewProcess(int32(entry.PID))
	if err != nil {
		return false
	}
	created, err := proc.CreateTime()
	if err != nil {
		return false
	}
	return !time.UnixMilli(created).After(entry.StartedAt.Add(startSkew))
}

func (j *Journal) view(fn func(*bolt.Tx) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}
	return j.db.View(fn)
}

func (j *Journal) update(fn func(*bolt.Tx) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}
	return j.db.Update(fn)
}
