// Package poller re-fetches an execution record on a schedule and hands each
// snapshot to a binding sink.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowgraph/internal/binder"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Fetcher returns the latest snapshot of the observed run.
type Fetcher interface {
	Fetch(ctx context.Context) (*schema.Execution, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*schema.Execution, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (*schema.Execution, error) { return f(ctx) }

// FileFetcher reads an execution record from a JSON file on every fetch.
type FileFetcher string

// Fetch reads and decodes the file.
func (f FileFetcher) Fetch(_ context.Context) (*schema.Execution, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("read execution record: %w", err)
	}
	return schema.DecodeExecution(data)
}

// Sink receives fetched records. *session.Session satisfies it.
type Sink interface {
	Bind(ctx context.Context, rec *schema.Execution) binder.Summary
	SwapInstance(ctx context.Context, rec *schema.Execution) binder.Summary
}

// ParseSchedule accepts a standard five-field cron expression, a descriptor
// such as "@every 5s", or a bare Go duration.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("poll interval %q must be positive", expr)
		}
		return cron.Every(d), nil
	}
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse poll schedule %q: %w", expr, err)
	}
	return s, nil
}

// Poller drives one fetch-and-bind loop until the run ends or it is stopped.
type Poller struct {
	fetcher  Fetcher
	sink     Sink
	schedule cron.Schedule
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	stateMu    sync.Mutex
	workflowID string
	last       binder.Summary
	failures   int
}

// New creates a Poller. The sink is swapped onto a fresh binding whenever
// the fetched workflow id changes.
func New(f Fetcher, sink Sink, schedule cron.Schedule, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:  f,
		sink:     sink,
		schedule: schedule,
		logger:   logging.OrNop(logger),
	}
}

// Start launches the polling loop. The first fetch happens immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.done != nil {
		p.mu.Unlock()
		return errors.New("poller already started")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go p.loop(pollCtx, done)
	p.logger.Info("poller started")
	return nil
}

// Done is closed when the loop exits, either on Stop, context cancellation
// or a terminal workflow status. It is nil before Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if finished := p.Tick(ctx); finished {
			p.logger.Info("observed run finished", "workflow_id", p.Last().WorkflowID,
				"status", p.Last().WorkflowStatus)
			return
		}

		now := time.Now()
		timer := time.NewTimer(p.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Tick fetches once and binds the result. It reports whether the fetched
// run has reached a terminal status. Fetch failures are logged and retried
// on the next tick.
func (p *Poller) Tick(ctx context.Context) bool {
	rec, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.stateMu.Lock()
		p.failures++
		failures := p.failures
		p.stateMu.Unlock()
		p.logger.Warn("fetch execution failed", "error", err, "failures", failures)
		return false
	}
	if rec == nil {
		return false
	}

	p.stateMu.Lock()
	swap := p.workflowID != "" && p.workflowID != rec.WorkflowID
	p.workflowID = rec.WorkflowID
	p.failures = 0
	p.stateMu.Unlock()

	var sum binder.Summary
	if swap {
		sum = p.sink.SwapInstance(ctx, rec)
	} else {
		sum = p.sink.Bind(ctx, rec)
	}

	p.stateMu.Lock()
	p.last = sum
	p.stateMu.Unlock()
	return rec.Status.Terminal()
}

// Last returns the summary of the most recent bind.
func (p *Poller) Last() binder.Summary {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.last
}

// Failures returns the number of consecutive failed fetches.
func (p *Poller) Failures() int {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.failures
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return nil
	}

	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil

	p.logger.Info("poller stopped")
	return nil
}
