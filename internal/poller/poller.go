// Package poller watches a backend job until it reaches a terminal status.
//
// A Poller owns a cancellable ticker loop. Each tick fetches one status
// snapshot through the injected StatusFetcher and replaces the local copy
// wholesale. Polling stops on completed/failed, when the attempt budget
// runs out, or when the caller stops it. All errors are handled locally
// and surfaced through Snapshot().Err and the optional OnError callback;
// the poller never panics into the caller.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"revenue-jobs/internal/entity"
)

// State is the poller's own lifecycle, distinct from the job's status.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed-out"
)

// TimeoutMessage is the fixed error text reported when the attempt budget
// is exhausted before a terminal status. Callers can match on it to tell
// a timeout apart from a backend failure.
const TimeoutMessage = "Job status polling timed out"

const fetchFallbackMessage = "Failed to fetch job status"

// StatusFetcher fetches one status snapshot for a job.
// The HTTP implementation lives in internal/client.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, jobID string) (*Record, error)
}

type Config struct {
	PollInterval time.Duration // between fetches; default 2s
	MaxAttempts  int           // tick budget before giving up; default 150
	AutoStart    bool          // start polling as soon as SetJob gets a job id

	OnComplete     func(result json.RawMessage)  // fires once, on completed with a result
	OnError        func(message string)          // fires on failed, fetch error or timeout
	OnStatusUpdate func(status entity.JobStatus) // fires after every successful fetch
}

// DefaultConfig matches the dashboard's defaults: 2s interval, 150 attempts
// (5 minutes), autostart on.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		MaxAttempts:  150,
		AutoStart:    true,
	}
}

type Poller struct {
	fetcher StatusFetcher
	cfg     Config

	mu       sync.Mutex
	jobID    string
	state    State
	status   entity.JobStatus
	progress int
	result   json.RawMessage
	errMsg   string
	record   *Record
	attempts int
	polling  bool
	gen      uint64 // bumped on every Start/Stop; stale ticks check it
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(fetcher StatusFetcher, cfg Config) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 150
	}

	done := make(chan struct{})
	close(done) // nothing running yet

	return &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		state:   StateIdle,
		done:    done,
	}
}

// Snapshot is a copy of the poller's observable state at one instant.
type Snapshot struct {
	State    State
	JobID    string
	Status   entity.JobStatus // "" until the first successful fetch
	Progress int
	Result   json.RawMessage
	Err      string
	Record   *Record
	Attempts int
	Polling  bool
}

func (s Snapshot) IsLoading() bool {
	return s.Status == entity.StatusWaiting || s.Status == entity.StatusActive
}

func (s Snapshot) IsComplete() bool { return s.State == StateCompleted }

// IsFailed covers both backend failures and timeouts; TimedOut narrows it.
func (s Snapshot) IsFailed() bool { return s.State == StateFailed || s.State == StateTimedOut }

func (s Snapshot) TimedOut() bool { return s.State == StateTimedOut }

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		State:    p.state,
		JobID:    p.jobID,
		Status:   p.status,
		Progress: p.progress,
		Result:   p.result,
		Err:      p.errMsg,
		Record:   p.record,
		Attempts: p.attempts,
		Polling:  p.polling,
	}
}

// Done returns a channel closed when the current polling run exits, for
// any reason. Closed immediately when nothing is running.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// SetJob swaps the watched job. An active poll for the previous id is torn
// down first and the new run starts from attempt zero. With AutoStart set
// and a non-empty id, polling begins immediately.
func (p *Poller) SetJob(ctx context.Context, jobID string) {
	p.mu.Lock()
	p.stopLocked()
	p.jobID = jobID
	p.resetLocked()
	auto := p.cfg.AutoStart && jobID != ""
	p.mu.Unlock()

	if auto {
		p.Start(ctx)
	}
}

// Start begins polling. No-op while already polling or without a job id.
// The run stops when ctx is cancelled, mirroring view teardown.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.polling {
		jobID := p.jobID
		p.mu.Unlock()
		log.Printf("[poller] job_id=%s start ignored: already polling", jobID)
		return
	}
	if p.jobID == "" {
		p.mu.Unlock()
		log.Printf("[poller] start ignored: no job id")
		return
	}

	p.gen++
	gen := p.gen
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.polling = true
	p.state = StatePolling
	p.attempts = 0
	jobID := p.jobID
	done := p.done
	p.mu.Unlock()

	go p.loop(runCtx, gen, jobID, done)
}

// Stop halts polling and cancels any in-flight fetch. Idempotent, valid in
// any state; the last observed status/result/error stay readable.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.gen++ // an in-flight tick must not apply after this
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.polling = false
	p.mu.Unlock()
}

// Retry restarts after a failure or timeout: error, status and progress go
// back to their initial values and the attempt counter starts at zero.
func (p *Poller) Retry(ctx context.Context) {
	p.mu.Lock()
	if p.state != StateFailed && p.state != StateTimedOut {
		state := p.state
		p.mu.Unlock()
		log.Printf("[poller] retry ignored: state=%s", state)
		return
	}
	p.resetLocked()
	p.mu.Unlock()

	p.Start(ctx)
}

func (p *Poller) stopLocked() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.polling = false
}

func (p *Poller) resetLocked() {
	p.state = StateIdle
	p.status = ""
	p.progress = 0
	p.result = nil
	p.errMsg = ""
	p.record = nil
	p.attempts = 0
}

func (p *Poller) loop(ctx context.Context, gen uint64, jobID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.markStopped(gen)
			return
		case <-ticker.C:
			if p.tick(ctx, gen, jobID) {
				return
			}
		}
	}
}

// markStopped clears the polling flag when the run context is cancelled
// from outside Stop (parent teardown).
func (p *Poller) markStopped(gen uint64) {
	p.mu.Lock()
	if gen == p.gen {
		p.polling = false
	}
	p.mu.Unlock()
}

// tick issues one fetch and applies the outcome. Returns true when the run
// is over. Ticks are serialized: the next fetch is not issued until this
// one resolves, so a slow response can never be overtaken by a later one
// and roll progress backwards.
func (p *Poller) tick(ctx context.Context, gen uint64, jobID string) bool {
	rec, err := p.fetcher.FetchStatus(ctx, jobID)
	if err == nil && rec == nil {
		err = errors.New("status fetch returned no record")
	}

	p.mu.Lock()
	if gen != p.gen || !p.polling {
		// Stop/SetJob won the race; discard this response
		p.mu.Unlock()
		return true
	}
	p.attempts++

	if err != nil {
		if ctx.Err() != nil {
			// cancelled mid-fetch, not a failure
			p.polling = false
			p.mu.Unlock()
			return true
		}
		msg := err.Error()
		if msg == "" {
			msg = fetchFallbackMessage
		}
		p.state = StateFailed
		p.errMsg = msg
		p.polling = false
		attempts := p.attempts
		onError := p.cfg.OnError
		p.mu.Unlock()

		log.Printf("[poller] job_id=%s fetch error=%q attempts=%d", jobID, msg, attempts)
		if onError != nil {
			onError(msg)
		}
		return true
	}

	p.record = rec
	p.status = rec.Status
	p.progress = rec.Progress
	status := rec.Status
	onStatus := p.cfg.OnStatusUpdate

	switch rec.Status {
	case entity.StatusCompleted:
		p.state = StateCompleted
		p.result = rec.Result
		p.polling = false
		result := rec.Result
		onComplete := p.cfg.OnComplete
		p.mu.Unlock()

		log.Printf("[poller] job_id=%s status=completed", jobID)
		if onStatus != nil {
			onStatus(status)
		}
		if onComplete != nil && result != nil {
			onComplete(result)
		}
		return true

	case entity.StatusFailed:
		msg := "Job failed"
		if rec.FailedReason != nil && *rec.FailedReason != "" {
			msg = *rec.FailedReason
		}
		p.state = StateFailed
		p.errMsg = msg
		p.polling = false
		onError := p.cfg.OnError
		p.mu.Unlock()

		log.Printf("[poller] job_id=%s status=failed reason=%q", jobID, msg)
		if onStatus != nil {
			onStatus(status)
		}
		if onError != nil {
			onError(msg)
		}
		return true

	default: // waiting / active
		if p.attempts >= p.cfg.MaxAttempts {
			p.state = StateTimedOut
			p.errMsg = TimeoutMessage
			p.polling = false
			attempts := p.attempts
			onError := p.cfg.OnError
			p.mu.Unlock()

			log.Printf("[poller] job_id=%s timed out attempts=%d", jobID, attempts)
			if onStatus != nil {
				onStatus(status)
			}
			if onError != nil {
				onError(TimeoutMessage)
			}
			return true
		}
		p.mu.Unlock()

		if onStatus != nil {
			onStatus(status)
		}
		return false
	}
}
