package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/report"
)

// stubSession is the minimal driver for runner tests: every action
// succeeds against an empty page.
type stubSession struct {
	id   string
	url  string
	text string
}

func (s *stubSession) ID() string                                  { return s.id }
func (s *stubSession) Navigate(_ context.Context, u string) error  { s.url = u; return nil }
func (s *stubSession) Refresh(context.Context) error               { return nil }
func (s *stubSession) WaitForLoad(context.Context) error           { return nil }
func (s *stubSession) ExecuteScript(context.Context, string, ...any) (any, error) {
	return nil, browser.ErrUnavailable
}
func (s *stubSession) CurrentURL(context.Context) (string, error)  { return s.url, nil }
func (s *stubSession) PageTitle(context.Context) (string, error)   { return "Stub", nil }
func (s *stubSession) PageText(context.Context) (string, error)    { return s.text, nil }
func (s *stubSession) Snapshot(context.Context) (*browser.Snapshot, error) {
	return &browser.Snapshot{URL: s.url, Viewport: browser.Viewport{Width: 1280, Height: 800}}, nil
}
func (s *stubSession) Click(context.Context, string) error                   { return nil }
func (s *stubSession) EnterText(context.Context, string, string, bool) error { return nil }
func (s *stubSession) SelectOption(context.Context, string, string) error    { return nil }
func (s *stubSession) UploadFile(context.Context, string, string) error      { return nil }
func (s *stubSession) ScrollTo(context.Context, string, string) error        { return nil }
func (s *stubSession) SubmitForm(context.Context, string) error              { return nil }
func (s *stubSession) PressEnter(context.Context, string) error              { return nil }
func (s *stubSession) ReadText(context.Context, string) (string, error)      { return "", nil }
func (s *stubSession) AcceptDialog(context.Context) error                    { return browser.ErrNoDialog }
func (s *stubSession) DismissDialog(context.Context) error                   { return browser.ErrNoDialog }
func (s *stubSession) SwitchTab(context.Context, bool, int) error            { return nil }
func (s *stubSession) Screenshot(context.Context) ([]byte, error)            { return []byte("png"), nil }
func (s *stubSession) Cookies(context.Context) ([]browser.Cookie, error)     { return nil, nil }
func (s *stubSession) LocalStorage(context.Context) (map[string]string, error) {
	return nil, nil
}
func (s *stubSession) SessionStorage(context.Context) (map[string]string, error) {
	return nil, nil
}
func (s *stubSession) StartNetworkCapture(context.Context) error { return nil }
func (s *stubSession) NetworkRequests(context.Context) ([]browser.NetworkRequest, error) {
	return nil, nil
}
func (s *stubSession) Performance(context.Context) (*browser.PerformanceSnapshot, error) {
	return &browser.PerformanceSnapshot{}, nil
}
func (s *stubSession) Close() error { return nil }

type stubRuntime struct {
	mu      sync.Mutex
	created int
}

func (r *stubRuntime) NewSession(context.Context, browser.SessionConfig) (browser.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	return &stubSession{id: shortID(), text: "stub page"}, nil
}

func (r *stubRuntime) Close() error { return nil }

func testManager(t *testing.T, mutate func(*config.Config)) *Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Runner.QueueGrace = 20 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	m := NewManager(&stubRuntime{}, cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func trivialFlow() *flow.Graph {
	b := flow.Block{ID: "snap", Type: flow.TypeSavePageContent,
		SaveAs: &flow.SaveAs{Key: "body", Label: "Body"}}
	b.ApplyDefaults()
	return &flow.Graph{Name: "smoke flow", EntryBlock: "snap", Blocks: []flow.Block{b}}
}

func waitForReport(t *testing.T, m *Manager, runID string) *report.ExecutionReport {
	t.Helper()
	var rep *report.ExecutionReport
	require.Eventually(t, func() bool {
		r, ok := m.Report(runID)
		rep = r
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	return rep
}

func TestRunEmitsOrderedEvents(t *testing.T) {
	m := testManager(t, nil)

	runID, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	require.NoError(t, err)

	stream, err := m.Events(runID)
	require.NoError(t, err)

	var events []report.Event
	for ev := range stream {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, report.EventExecutionStart, events[0].Type)
	assert.Equal(t, report.EventExecutionComplete, events[len(events)-1].Type)
	for _, ev := range events {
		assert.Equal(t, runID, ev.RunID)
		assert.NotEmpty(t, ev.ID)
	}

	rep := waitForReport(t, m, runID)
	assert.True(t, rep.Success)
}

func TestEventQueueDrainedOnce(t *testing.T) {
	m := testManager(t, nil)

	runID, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	require.NoError(t, err)

	_, err = m.Events(runID)
	require.NoError(t, err)

	_, err = m.Events(runID)
	assert.ErrorIs(t, err, ErrQueueDrained)
}

func TestQueueRetiredAfterGrace(t *testing.T) {
	m := testManager(t, nil)

	runID, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	require.NoError(t, err)
	waitForReport(t, m, runID)

	// Inside the grace window the queue is still reachable.
	require.Eventually(t, func() bool {
		_, err := m.Events(runID)
		return err == ErrUnknownRun
	}, 5*time.Second, 10*time.Millisecond, "queue should be retired after the grace window")
}

func TestHistoryEvictsOldestPastCapacity(t *testing.T) {
	m := testManager(t, func(cfg *config.Config) {
		cfg.Runner.HistoryCapacity = 3
	})

	var ids []string
	for range 5 {
		runID, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
		require.NoError(t, err)
		waitForReport(t, m, runID)
		ids = append(ids, runID)
	}

	hist := m.History()
	require.Len(t, hist, 3)

	_, ok := m.Report(ids[0])
	assert.False(t, ok, "oldest run evicted")
	_, ok = m.Report(ids[1])
	assert.False(t, ok)
	_, ok = m.Report(ids[4])
	assert.True(t, ok, "newest run retained")
}

func TestConcurrentRunsKeepVariablesIsolated(t *testing.T) {
	m := testManager(t, nil)

	idA, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{
		Variables: map[string]string{"seed": "alpha"}, ScenarioName: "alpha",
	})
	require.NoError(t, err)
	idB, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{
		Variables: map[string]string{"seed": "beta"}, ScenarioName: "beta",
	})
	require.NoError(t, err)

	repA := waitForReport(t, m, idA)
	repB := waitForReport(t, m, idB)

	assert.Equal(t, "alpha", repA.FinalVariables["seed"])
	assert.Equal(t, "beta", repB.FinalVariables["seed"])
	assert.Equal(t, "alpha", repA.ScenarioName)
	assert.Equal(t, "beta", repB.ScenarioName)
}

func TestDeleteAndClearHistory(t *testing.T) {
	m := testManager(t, nil)

	runID, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	require.NoError(t, err)
	waitForReport(t, m, runID)

	assert.True(t, m.Delete(runID))
	_, ok := m.Report(runID)
	assert.False(t, ok)
	assert.False(t, m.Delete(runID), "second delete is a no-op")

	runID2, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	require.NoError(t, err)
	waitForReport(t, m, runID2)
	m.Clear()
	assert.Empty(t, m.History())
}

type recordingStore struct {
	mu    sync.Mutex
	saved []*report.ExecutionReport
}

func (s *recordingStore) SaveReport(_ context.Context, r *report.ExecutionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestCompletedReportsPersisted(t *testing.T) {
	m := testManager(t, nil)
	store := &recordingStore{}
	m.SetStore(store)

	runID, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	require.NoError(t, err)
	waitForReport(t, m, runID)

	require.Eventually(t, func() bool { return store.count() == 1 }, 5*time.Second, 5*time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, runID, store.saved[0].RunID)
}

func TestStartRunAfterCloseFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Runner.QueueGrace = time.Millisecond
	m := NewManager(&stubRuntime{}, cfg)
	require.NoError(t, m.Close())

	_, err := m.StartRun(context.Background(), trivialFlow(), StartOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}
