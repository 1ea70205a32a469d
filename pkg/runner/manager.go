// Package runner supervises flow executions. Each run gets one browser
// session, one interpreter, an ordered progress-event queue, and a slot
// in a bounded recently-completed history. Queues are single-consumer:
// once a reader takes the stream it is gone, and the queue itself is
// retired after a grace window so slow readers can still attach shortly
// after the run finishes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/interp"
	"github.com/odvcencio/weblens/pkg/logging"
	"github.com/odvcencio/weblens/pkg/report"
)

var (
	ErrClosed     = errors.New("runner closed")
	ErrUnknownRun = errors.New("unknown run")
	// ErrQueueDrained means the event stream was already handed to a
	// consumer. Queues are read exactly once.
	ErrQueueDrained = errors.New("event queue already drained")
)

// ReportStore persists completed execution reports. Satisfied by
// storage.Store; nil disables persistence.
type ReportStore interface {
	SaveReport(ctx context.Context, r *report.ExecutionReport) error
}

// StartOptions configures one run.
type StartOptions struct {
	Variables    map[string]string
	ScenarioName string
}

// Manager owns all live runs and the completed-run history.
type Manager struct {
	cfg      *config.Config
	sessions *browser.Manager
	store    ReportStore
	logDir   string

	mu      sync.Mutex
	queues  map[string]*runQueue
	history map[string]*report.ExecutionReport
	order   []string
	suites  map[string]*report.SuiteReport
	timers  []*time.Timer
	closed  bool

	wg sync.WaitGroup

	// retireAfter is the queue grace window, injectable for tests.
	retireAfter time.Duration
}

// NewManager creates a run manager over the given browser runtime.
func NewManager(runtime browser.Runtime, cfg *config.Config) *Manager {
	grace := cfg.Runner.QueueGrace
	if grace <= 0 {
		grace = config.DefaultQueueGrace
	}
	return &Manager{
		cfg:         cfg,
		sessions:    browser.NewManager(runtime),
		queues:      make(map[string]*runQueue),
		history:     make(map[string]*report.ExecutionReport),
		suites:      make(map[string]*report.SuiteReport),
		retireAfter: grace,
	}
}

// SetStore attaches a report store. Reports are saved best-effort at
// run completion.
func (m *Manager) SetStore(s ReportStore) { m.store = s }

// SetLogDir enables per-run JSONL logging under dir.
func (m *Manager) SetLogDir(dir string) { m.logDir = dir }

// StartRun begins executing the flow in the background and returns the
// run id immediately. The run outlives the caller's context.
func (m *Manager) StartRun(ctx context.Context, g *flow.Graph, opts StartOptions) (string, error) {
	runID := uuid.NewString()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	q := newRunQueue(m.eventBuffer())
	m.queues[runID] = q
	m.wg.Add(1)
	m.mu.Unlock()

	recordRunStarted()
	bg := context.WithoutCancel(ctx)
	go func() {
		defer m.wg.Done()
		defer recordRunFinished()

		rep := m.runOnce(bg, runID, g, opts.Variables, opts.ScenarioName, func(ev report.Event) {
			ev.ID = ulid.Make().String()
			q.push(ev)
		})
		if rep != nil {
			m.remember(runID, rep)
			if m.store != nil {
				if err := m.store.SaveReport(bg, rep); err != nil {
					q.push(report.Event{
						ID:        ulid.Make().String(),
						Type:      report.EventError,
						RunID:     runID,
						Data:      map[string]any{"message": "report persistence failed: " + err.Error()},
						Timestamp: time.Now(),
					})
				}
			}
		}
		q.close()
		m.retireQueue(runID)
	}()
	return runID, nil
}

// runOnce executes a single flow against a fresh session. A nil report
// means the session could not even be opened; the failure is delivered
// through onEvent.
func (m *Manager) runOnce(ctx context.Context, runID string, g *flow.Graph, vars map[string]string, scenarioName string, onEvent func(report.Event)) *report.ExecutionReport {
	sess, err := m.sessions.CreateSession(ctx, m.sessionConfig())
	if err != nil {
		if onEvent != nil {
			onEvent(report.Event{
				Type:      report.EventError,
				RunID:     runID,
				Data:      map[string]any{"message": "failed to open browser session: " + err.Error()},
				Timestamp: time.Now(),
			})
		}
		return nil
	}
	defer m.sessions.CloseSession(sess.ID())

	in := interp.New(sess, m.cfg)
	if m.logDir != "" {
		if lg, lerr := logging.NewLogger(m.logDir, runID); lerr == nil {
			defer lg.Close()
			in.SetLogger(lg)
		}
	}
	if onEvent != nil {
		in.OnEvent(onEvent)
	}
	return in.Execute(ctx, g, interp.Options{
		RunID:            runID,
		InitialVariables: vars,
		ScenarioName:     scenarioName,
	})
}

// Events hands the run's ordered event stream to the caller. The
// channel is closed when the run completes. Each queue can be taken
// exactly once.
func (m *Manager) Events(runID string) (<-chan report.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[runID]
	if !ok {
		return nil, ErrUnknownRun
	}
	if !q.take() {
		return nil, ErrQueueDrained
	}
	return q.ch, nil
}

// Report returns a completed run's report from history.
func (m *Manager) Report(runID string) (*report.ExecutionReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.history[runID]
	return rep, ok
}

// History lists completed runs, oldest first.
func (m *Manager) History() []*report.ExecutionReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*report.ExecutionReport, 0, len(m.order))
	for _, id := range m.order {
		if rep, ok := m.history[id]; ok {
			out = append(out, rep)
		}
	}
	return out
}

// Delete removes a run from history and drops its queue.
func (m *Manager) Delete(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.history[runID]
	delete(m.history, runID)
	for i, id := range m.order {
		if id == runID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	delete(m.queues, runID)
	return ok
}

// Clear drops all completed runs. Live queues are kept so active
// consumers are not cut off.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make(map[string]*report.ExecutionReport)
	m.order = nil
}

// Close stops accepting runs and waits for in-flight ones.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	timers := m.timers
	m.timers = nil
	m.mu.Unlock()

	m.wg.Wait()
	for _, t := range timers {
		t.Stop()
	}
	return nil
}

func (m *Manager) sessionConfig() browser.SessionConfig {
	sc := browser.DefaultSessionConfig()
	if m.cfg.Browser.ViewportWidth > 0 && m.cfg.Browser.ViewportHeight > 0 {
		sc.Viewport = browser.Viewport{Width: m.cfg.Browser.ViewportWidth, Height: m.cfg.Browser.ViewportHeight}
	}
	if m.cfg.Browser.NavigateTimeout > 0 {
		sc.NavigateTimeout = m.cfg.Browser.NavigateTimeout
	}
	sc.Headless = m.cfg.Browser.Headless
	return sc
}

func (m *Manager) eventBuffer() int {
	if m.cfg.Runner.EventBuffer > 0 {
		return m.cfg.Runner.EventBuffer
	}
	return config.DefaultEventBuffer
}

// remember inserts a completed report, evicting the oldest entry once
// the history is at capacity.
func (m *Manager) remember(runID string, rep *report.ExecutionReport) {
	capacity := m.cfg.Runner.HistoryCapacity
	if capacity <= 0 {
		capacity = config.DefaultHistoryCapacity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.history[runID]; !exists {
		m.order = append(m.order, runID)
	}
	m.history[runID] = rep
	for len(m.order) > capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.history, oldest)
		recordEviction()
	}
}

// retireQueue removes the queue after the grace window. The window
// exists for consumers that attach just after completion.
func (m *Manager) retireQueue(runID string) {
	t := time.AfterFunc(m.retireAfter, func() {
		m.mu.Lock()
		delete(m.queues, runID)
		m.mu.Unlock()
	})
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
}

func shortID() string {
	return fmt.Sprintf("%.8s", uuid.NewString())
}

// runQueue is a single-producer, single-consumer buffered event stream.
type runQueue struct {
	ch chan report.Event

	mu     sync.Mutex
	taken  bool
	closed bool
}

func newRunQueue(buffer int) *runQueue {
	return &runQueue{ch: make(chan report.Event, buffer)}
}

// push enqueues without blocking. When the consumer lags past the
// buffer, newer events are dropped rather than stalling the run.
func (q *runQueue) push(ev report.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- ev:
		recordEvent()
	default:
		recordDroppedEvent()
	}
}

func (q *runQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// take marks the queue as consumed. Only the first caller wins.
func (q *runQueue) take() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.taken {
		return false
	}
	q.taken = true
	return true
}
