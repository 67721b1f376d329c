package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/logging"
)

var log = logging.NewNamed("sync")

// SyncState represents the current state of a refresh job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the state of a single job.
type SyncStatus struct {
	Job      string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a job run completes.
type SyncResultMsg struct {
	Job       string
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg reports that the server rejected the session.
type AuthErrorMsg struct {
	Job     string
	Message string
}

// Job is a periodic background refresh, such as pending friend requests
// or the unread message count.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// ResultError is returned by jobs built with FromResult when the store
// action fails.
type ResultError struct {
	Result api.Result
}

func (e *ResultError) Error() string { return e.Result.Message }

func (e *ResultError) UserMessage() string { return e.Result.Message }

// FromResult adapts a store action to a Job body.
func FromResult(action func(ctx context.Context) api.Result) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if r := action(ctx); !r.Success {
			return &ResultError{Result: r}
		}
		return nil
	}
}

const (
	// runTimeout is the maximum time allowed for a single job run.
	runTimeout      = 30 * time.Second
	defaultInterval = 60 * time.Second
)

// ErrSkip may be returned by a job that had nothing to do. The run is not
// reported.
var ErrSkip = errors.New("sync: skipped")

// Poller runs registered jobs in the background and reports each run to
// the Bubble Tea runtime.
type Poller struct {
	jobs      []Job
	statuses  map[string]*SyncStatus
	triggers  map[string]chan struct{}
	resultCh  chan SyncResultMsg
	stopCh    chan struct{}
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	running   bool
}

func New() *Poller {
	return &Poller{
		statuses: make(map[string]*SyncStatus),
		triggers: make(map[string]chan struct{}),
		resultCh: make(chan SyncResultMsg, 16),
	}
}

// Register adds a job. Jobs registered while running start on the next
// Start.
func (p *Poller) Register(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job.Interval <= 0 {
		job.Interval = defaultInterval
	}
	p.jobs = append(p.jobs, job)
	p.statuses[job.Name] = &SyncStatus{Job: job.Name, State: SyncIdle}
	p.triggers[job.Name] = make(chan struct{}, 1)
}

// Start launches a goroutine per job and returns a command that waits for
// the first result. It is a no-op while running.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	jobs := append([]Job(nil), p.jobs...)
	stop := p.stopCh
	p.wg.Add(len(jobs))
	p.mu.Unlock()

	for _, job := range jobs {
		go func(job Job) {
			defer p.wg.Done()
			p.runJob(job, p.trigger(job.Name), stop)
		}(job)
	}

	return p.waitForResult()
}

// Stop halts all job goroutines and waits for them to exit. The poller
// can be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Running reports whether jobs are being polled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshAll triggers an immediate run of every job.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	names := make([]string, len(p.jobs))
	for i, j := range p.jobs {
		names[i] = j.Name
	}
	p.mu.Unlock()

	for _, name := range names {
		p.Refresh(name)
	}
}

// Refresh triggers an immediate run of one job. Unknown names are
// ignored.
func (p *Poller) Refresh(name string) {
	ch := p.trigger(name)
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// A run is already pending.
	}
}

func (p *Poller) trigger(name string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers[name]
}

// GetStatuses returns the state of every job.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, j := range p.jobs {
		statuses = append(statuses, *p.statuses[j.Name])
	}
	return statuses
}

func (p *Poller) runJob(job Job, trigger <-chan struct{}, stop <-chan struct{}) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// Run once immediately
	p.run(job)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.run(job)
		case <-trigger:
			p.run(job)
		}
	}
}

func (p *Poller) run(job Job) {
	p.setStatus(job.Name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	err := job.Run(ctx)
	switch {
	case errors.Is(err, ErrSkip):
		p.setStatus(job.Name, SyncIdle, nil)
		return
	case err != nil:
		p.setStatus(job.Name, SyncError, err)
		log.Warn("job failed", zap.String("job", job.Name), zap.Error(err))

		if api.ClassOf(err) == api.ClassAuth {
			p.sendResult(SyncResultMsg{
				Job:   job.Name,
				Error: err,
				AuthError: &AuthErrorMsg{
					Job:     job.Name,
					Message: "Session expired. Press ctrl+l to log in again.",
				},
			})
			return
		}
		p.sendResult(SyncResultMsg{Job: job.Name, Error: err})
		return
	}

	p.setStatus(job.Name, SyncIdle, nil)
	p.sendResult(SyncResultMsg{Job: job.Name})
}

func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult delivers a result without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-p.resultCh
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next job result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
