package runner

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/report"
)

// Scenario is one row of a data-driven suite: a name plus variable
// bindings layered over the base variables.
type Scenario struct {
	Name   string            `json:"scenario_name"`
	Values map[string]string `json:"values"`
}

// RunSuite executes the flow once per scenario, fanning scenarios out
// with a concurrency cap. Each scenario is a fully isolated run with
// its own session and variable space; one scenario failing never stops
// the others. Returns the suite id immediately.
func (m *Manager) RunSuite(ctx context.Context, g *flow.Graph, scenarios []Scenario, base map[string]string) (string, error) {
	suiteID := "suite_" + shortID()
	sr := &report.SuiteReport{
		SuiteID:   suiteID,
		FlowName:  g.Name,
		StartedAt: time.Now(),
		Results:   make([]report.SuiteResult, len(scenarios)),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	m.suites[suiteID] = sr
	m.wg.Add(1)
	m.mu.Unlock()

	limit := m.cfg.Runner.MaxConcurrentRuns
	if limit <= 0 {
		limit = config.DefaultMaxConcurrentRuns
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer m.wg.Done()

		grp, gctx := errgroup.WithContext(bg)
		grp.SetLimit(limit)
		for i, sc := range scenarios {
			grp.Go(func() error {
				runID := sc.Name + "_" + shortID()

				vars := make(map[string]string, len(base)+len(sc.Values))
				for k, v := range base {
					vars[k] = v
				}
				for k, v := range sc.Values {
					vars[k] = v
				}

				rep := m.runOnce(gctx, runID, g, vars, sc.Name, nil)
				success := rep != nil && rep.Success
				if rep != nil {
					m.remember(runID, rep)
					if m.store != nil {
						_ = m.store.SaveReport(gctx, rep)
					}
				}

				m.mu.Lock()
				sr.Results[i] = report.SuiteResult{
					ScenarioName: sc.Name,
					RunID:        runID,
					Success:      success,
					Report:       rep,
				}
				m.mu.Unlock()
				// Scenario outcomes are data, not errors.
				return nil
			})
		}
		_ = grp.Wait()

		m.mu.Lock()
		sr.FinishedAt = time.Now()
		m.mu.Unlock()
		recordSuite(sr.Passed())
	}()

	return suiteID, nil
}

// Suite returns a snapshot of the suite report. FinishedAt is zero
// while scenarios are still running.
func (m *Manager) Suite(suiteID string) (*report.SuiteReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sr, ok := m.suites[suiteID]
	if !ok {
		return nil, false
	}
	snap := *sr
	snap.Results = append([]report.SuiteResult(nil), sr.Results...)
	return &snap, true
}
