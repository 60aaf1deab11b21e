package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

type TrafficMonitorOptions struct {
	// Command is the traffic sampler executable, nload by default.
	Command        string
	Interface      string
	Period         time.Duration
	MaxReceiveMbps float64
	MaxSendMbps    float64
	Logger         *zap.Logger
}

// TrafficMonitor runs nload against one interface and keeps the latest
// average receive and send rates it printed.
type TrafficMonitor struct {
	command string
	iface   string
	period  time.Duration
	maxRx   float64
	maxTx   float64
	logger  *zap.Logger

	mu      sync.Mutex
	rx      float64
	tx      float64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewTrafficMonitor(opts TrafficMonitorOptions) *TrafficMonitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	command := opts.Command
	if command == "" {
		command = domain.DefaultNetworkCommand
	}
	period := opts.Period
	if period <= 0 {
		period = time.Duration(domain.DefaultNetworkPeriodMs) * time.Millisecond
	}
	maxRx := opts.MaxReceiveMbps
	if maxRx <= 0 {
		maxRx = domain.DefaultMaxReceiveMbps
	}
	maxTx := opts.MaxSendMbps
	if maxTx <= 0 {
		maxTx = domain.DefaultMaxSendMbps
	}
	return &TrafficMonitor{
		command: command,
		iface:   opts.Interface,
		period:  period,
		maxRx:   maxRx,
		maxTx:   maxTx,
		logger:  logger.With(zap.String("interface", opts.Interface)),
	}
}

// Args returns the sampler command line without the executable.
func (m *TrafficMonitor) Args() []string {
	return []string{"-u", "m", "-t", strconv.FormatInt(m.period.Milliseconds(), 10), "devices", m.iface}
}

// Start launches the sampler subprocess. Without an interface there is
// nothing to watch and load stays at 0.
func (m *TrafficMonitor) Start(ctx context.Context) error {
	if m.iface == "" {
		m.logger.Warn("no network interface to watch, network load stays at 0")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, m.command, m.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: traffic sampler stdout: %v", domain.ErrSamplingFailed, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: start %s: %v", domain.ErrSamplingFailed, m.command, err)
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.logger.Info("traffic sampler started", zap.Int("pid", cmd.Process.Pid))

	go m.run(runCtx, cmd, stdout)
	return nil
}

func (m *TrafficMonitor) run(ctx context.Context, cmd *exec.Cmd, stdout io.Reader) {
	defer close(m.done)

	m.consume(stdout)
	err := cmd.Wait()

	m.mu.Lock()
	m.running = false
	m.rx, m.tx = 0, 0
	m.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	m.logger.Error("traffic sampler exited",
		telemetry.EventField(telemetry.EventSamplerFailure),
		zap.Error(err),
	)
}

// consume parses output chunk by chunk as nload redraws its screen.
func (m *TrafficMonitor) consume(r io.Reader) {
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if rx, tx, ok := ParseTraffic(string(buf[:n])); ok {
				m.mu.Lock()
				m.rx, m.tx = rx, tx
				m.mu.Unlock()
			} else {
				m.logger.Debug("unrecognized traffic sampler output")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.logger.Debug("traffic sampler read ended", zap.Error(err))
			}
			return
		}
	}
}

func (m *TrafficMonitor) Sample(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return 0, nil
	}
	return math.Max(m.rx/m.maxRx, m.tx/m.maxTx), nil
}

func (m *TrafficMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

var avgPattern = regexp.MustCompile(`Avg:\s+(.*?)\s+MBit/s`)

// ParseTraffic extracts the receive and send averages from one chunk of nload
// output. A chunk counts only if it holds exactly two "Avg:" lines, incoming
// first.
func ParseTraffic(chunk string) (rx, tx float64, ok bool) {
	var lines []string
	for _, segment := range strings.Split(chunk, "\x1b") {
		if strings.Contains(segment, "Avg:") {
			lines = append(lines, segment)
		}
	}
	if len(lines) != 2 {
		return 0, 0, false
	}
	values := make([]float64, 0, 2)
	for _, line := range lines {
		match := avgPattern.FindStringSubmatch(line)
		if match == nil {
			return 0, 0, false
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(match[1]), 64)
		if err != nil {
			return 0, 0, false
		}
		values = append(values, value)
	}
	return values[0], values[1], true
}
