package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"erizoagent/internal/domain"
)

type fakeHandle struct {
	pid    int
	done   chan struct{}
	once   sync.Once
	code   atomic.Int64
	killed atomic.Bool
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) PID() int              { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) ExitCode() int         { return int(h.code.Load()) }

func (h *fakeHandle) Kill() error {
	h.killed.Store(true)
	h.exit(-1)
	return nil
}

func (h *fakeHandle) exit(code int) {
	h.once.Do(func() {
		h.code.Store(int64(code))
		close(h.done)
	})
}

type fakeLauncher struct {
	mu      sync.Mutex
	handles map[string]*fakeHandle
	order   []string
	err     error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{handles: make(map[string]*fakeHandle)}
}

func (l *fakeLauncher) Launch(workerID string) (domain.WorkerHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	h := newFakeHandle(1000 + len(l.order))
	l.handles[workerID] = h
	l.order = append(l.order, workerID)
	return h, nil
}

func (l *fakeLauncher) launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *fakeLauncher) handle(workerID string) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[workerID]
}

func (l *fakeLauncher) failWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("w%d", n.Add(1))
	}
}
