package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/report"
)

func waitForSuite(t *testing.T, m *Manager, suiteID string) *report.SuiteReport {
	t.Helper()
	var sr *report.SuiteReport
	require.Eventually(t, func() bool {
		s, ok := m.Suite(suiteID)
		sr = s
		return ok && !s.FinishedAt.IsZero()
	}, 10*time.Second, 10*time.Millisecond)
	return sr
}

func TestSuiteRunsEveryScenario(t *testing.T) {
	m := testManager(t, func(cfg *config.Config) {
		cfg.Runner.MaxConcurrentRuns = 2
	})

	scenarios := []Scenario{
		{Name: "standard_user", Values: map[string]string{"user": "alice"}},
		{Name: "locked_user", Values: map[string]string{"user": "bob"}},
		{Name: "admin_user", Values: map[string]string{"user": "root"}},
	}
	suiteID, err := m.RunSuite(context.Background(), trivialFlow(), scenarios, map[string]string{
		"BASE_URL": "https://staging.shop.example",
	})
	require.NoError(t, err)

	sr := waitForSuite(t, m, suiteID)
	require.Len(t, sr.Results, 3)
	assert.True(t, sr.Passed())
	assert.Equal(t, "smoke flow", sr.FlowName)

	seen := map[string]bool{}
	for i, res := range sr.Results {
		assert.Equal(t, scenarios[i].Name, res.ScenarioName, "results keep scenario order")
		assert.True(t, res.Success)
		require.NotNil(t, res.Report)
		assert.False(t, seen[res.RunID], "run ids are unique")
		seen[res.RunID] = true

		// Base variables and scenario values both land in the run.
		assert.Equal(t, "https://staging.shop.example", res.Report.FinalVariables["BASE_URL"])
		assert.Equal(t, scenarios[i].Values["user"], res.Report.FinalVariables["user"])
	}
}

func TestSuiteScenariosLandInHistory(t *testing.T) {
	m := testManager(t, nil)

	suiteID, err := m.RunSuite(context.Background(), trivialFlow(), []Scenario{
		{Name: "one"}, {Name: "two"},
	}, nil)
	require.NoError(t, err)

	sr := waitForSuite(t, m, suiteID)
	for _, res := range sr.Results {
		rep, ok := m.Report(res.RunID)
		require.True(t, ok)
		assert.Equal(t, res.RunID, rep.RunID)
	}
}

func TestSuiteSnapshotWhileRunning(t *testing.T) {
	m := testManager(t, nil)

	suiteID, err := m.RunSuite(context.Background(), trivialFlow(), []Scenario{{Name: "solo"}}, nil)
	require.NoError(t, err)

	sr, ok := m.Suite(suiteID)
	require.True(t, ok)
	assert.Equal(t, suiteID, sr.SuiteID)
	assert.False(t, sr.StartedAt.IsZero())

	waitForSuite(t, m, suiteID)
	_, ok = m.Suite("suite_missing")
	assert.False(t, ok)
}
