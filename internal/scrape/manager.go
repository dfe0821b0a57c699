package scrape

import (
	"context"
	"errors"
	"sync"
	"time"

	"bilancio/internal/log"
)

// RunState is the lifecycle of the manager's current pull.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StateDone    RunState = "done"
	StateFailed  RunState = "failed"
)

var (
	ErrPullInProgress = errors.New("a pull is already running")
	ErrNoPullWaiting  = errors.New("no pull is waiting for a code")
)

// Status is the serializable snapshot the status endpoint returns.
type Status struct {
	State      RunState   `json:"state"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	Result     PullResult `json:"result"`
	Error      string     `json:"error,omitempty"`
}

// Manager serializes pulls: one run at a time, with a one-shot code channel
// bridging the HTTP code-submission endpoint to whichever scraper asked.
type Manager struct {
	fetcher *Fetcher
	creds   Credentials
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	status Status
	code   chan string
	cancel context.CancelFunc
}

func NewManager(fetcher *Fetcher, creds Credentials, timeout time.Duration, logger *log.Logger) *Manager {
	return &Manager{
		fetcher: fetcher,
		creds:   creds,
		timeout: timeout,
		logger:  logger.WithComponent(log.ComponentScrape),
		status:  Status{State: StateIdle},
	}
}

// Start launches a pull in the background. The previous run's outcome is
// discarded. Returns ErrPullInProgress while one is still active.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State == StateRunning {
		return ErrPullInProgress
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	m.cancel = cancel
	m.code = make(chan string, 1)
	m.status = Status{State: StateRunning, StartedAt: time.Now().UTC()}

	go m.run(ctx, m.code)
	return nil
}

func (m *Manager) run(ctx context.Context, code <-chan string) {
	defer m.cancel()
	result, err := m.fetcher.PullAll(ctx, m.creds, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.FinishedAt = time.Now().UTC()
	m.status.Result = result
	if err != nil {
		m.status.State = StateFailed
		m.status.Error = err.Error()
		return
	}
	m.status.State = StateDone
}

// SubmitCode hands a two-factor code to the running pull. The channel is
// buffered so the submitter never blocks; a second code before the first is
// consumed is refused.
func (m *Manager) SubmitCode(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State != StateRunning {
		return ErrNoPullWaiting
	}
	select {
	case m.code <- code:
		return nil
	default:
		return ErrNoPullWaiting
	}
}

// Cancel aborts the running pull, killing any scraper subprocesses.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Status returns a snapshot of the current or last run.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
