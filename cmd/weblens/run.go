package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/browser/adapters/static"
	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/report"
	"github.com/odvcencio/weblens/pkg/runner"
	"github.com/odvcencio/weblens/pkg/storage"
)

// varFlags collects repeated --var key=value assignments.
type varFlags map[string]string

func (v varFlags) String() string { return "" }

func (v varFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[strings.TrimSpace(key)] = value
	return nil
}

func runValidateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: weblens validate <flow.json>")
	}

	g, err := loadFlow(fs.Arg(0))
	if err != nil {
		return err
	}

	problems := g.ValidateReferences()
	problems = append(problems, g.ValidateCompleteness()...)
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		return withExitCode(fmt.Errorf("flow '%s' has %d problem(s)", g.Name, len(problems)), 2)
	}
	fmt.Printf("Flow '%s' is runnable (%d blocks).\n", g.Name, len(g.Blocks))
	return nil
}

func runRunCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file path")
	pagesDir := fs.String("pages", "", "Directory of HTML fixture pages (required)")
	baseURL := fs.String("base", "https://static.local", "Base URL the fixture pages are served under")
	storePath := fs.String("store", "", "SQLite database to persist the report to")
	logDir := fs.String("logs", "", "Directory for structured run logs")
	scenarioName := fs.String("scenario", "", "Scenario name recorded in the report")
	quiet := fs.Bool("quiet", false, "Suppress per-block progress output")
	vars := varFlags{}
	fs.Var(vars, "var", "Initial variable as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: weblens run [flags] <flow.json>")
	}
	if strings.TrimSpace(*pagesDir) == "" {
		return fmt.Errorf("usage: weblens run --pages <dir> <flow.json>")
	}

	g, err := loadFlow(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	rt, err := loadPages(*pagesDir, *baseURL)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, ok := vars["BASE_URL"]; !ok {
		vars["BASE_URL"] = *baseURL
	}

	mgr := runner.NewManager(rt, cfg)
	defer mgr.Close()
	if *logDir != "" {
		mgr.SetLogDir(*logDir)
	}
	if *storePath != "" {
		store, err := storage.New(*storePath)
		if err != nil {
			return fmt.Errorf("open report store: %w", err)
		}
		defer store.Close()
		mgr.SetStore(store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID, err := mgr.StartRun(ctx, g, runner.StartOptions{
		Variables:    vars,
		ScenarioName: *scenarioName,
	})
	if err != nil {
		return err
	}

	events, err := mgr.Events(runID)
	if err != nil {
		return err
	}
	for ev := range events {
		if !*quiet {
			printEvent(ev)
		}
	}

	rep, ok := mgr.Report(runID)
	if !ok {
		return fmt.Errorf("run %s produced no report", runID)
	}
	if err := printJSON(rep); err != nil {
		return err
	}
	if !rep.Success {
		return withExitCode(fmt.Errorf("flow '%s' failed", g.Name), 1)
	}
	return nil
}

func runSuiteCommand(args []string) error {
	fs := flag.NewFlagSet("suite", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file path")
	pagesDir := fs.String("pages", "", "Directory of HTML fixture pages (required)")
	baseURL := fs.String("base", "https://static.local", "Base URL the fixture pages are served under")
	storePath := fs.String("store", "", "SQLite database to persist reports to")
	setName := fs.String("set", "", "Scenario set to run (default: first)")
	vars := varFlags{}
	fs.Var(vars, "var", "Base variable as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: weblens suite [flags] <flow.json>")
	}
	if strings.TrimSpace(*pagesDir) == "" {
		return fmt.Errorf("usage: weblens suite --pages <dir> <flow.json>")
	}

	g, err := loadFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	scenarios, err := pickScenarios(g, *setName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	rt, err := loadPages(*pagesDir, *baseURL)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, ok := vars["BASE_URL"]; !ok {
		vars["BASE_URL"] = *baseURL
	}

	mgr := runner.NewManager(rt, cfg)
	if *storePath != "" {
		store, err := storage.New(*storePath)
		if err != nil {
			return fmt.Errorf("open report store: %w", err)
		}
		defer store.Close()
		mgr.SetStore(store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	suiteID, err := mgr.RunSuite(ctx, g, scenarios, vars)
	if err != nil {
		return err
	}

	// Close waits for every scenario run to finish.
	if err := mgr.Close(); err != nil {
		return err
	}

	sr, ok := mgr.Suite(suiteID)
	if !ok {
		return fmt.Errorf("suite %s produced no report", suiteID)
	}
	if err := printJSON(sr); err != nil {
		return err
	}
	if !sr.Passed() {
		failed := 0
		for _, r := range sr.Results {
			if !r.Success {
				failed++
			}
		}
		return withExitCode(fmt.Errorf("%d of %d scenario(s) failed", failed, len(sr.Results)), 1)
	}
	return nil
}

func loadFlow(path string) (*flow.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow: %w", err)
	}
	return flow.Decode(data)
}

// loadPages registers every HTML file under dir with the static
// runtime. about.html is served at <base>/about, index.html at the
// base URL itself; subdirectories contribute their path.
func loadPages(dir, baseURL string) (*static.Runtime, error) {
	rt := static.NewRuntime()
	base := strings.TrimRight(baseURL, "/")

	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".html" && ext != ".htm" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rt.AddPage(pageURL(base, rel), static.Document{HTML: string(data)})
		count++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load pages from %s: %w", dir, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("no .html pages found under %s", dir)
	}
	return rt, nil
}

func pageURL(base, rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	if rel == "index" {
		return base + "/"
	}
	rel = strings.TrimSuffix(rel, "/index")
	return base + "/" + rel
}

func pickScenarios(g *flow.Graph, setName string) ([]runner.Scenario, error) {
	if len(g.ScenarioSets) == 0 {
		return nil, fmt.Errorf("flow '%s' has no scenario sets", g.Name)
	}
	set := &g.ScenarioSets[0]
	if setName != "" {
		set = nil
		for i := range g.ScenarioSets {
			if g.ScenarioSets[i].Name == setName {
				set = &g.ScenarioSets[i]
				break
			}
		}
		if set == nil {
			return nil, fmt.Errorf("no scenario set named %q", setName)
		}
	}
	if len(set.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario set '%s' is empty", set.Name)
	}

	out := make([]runner.Scenario, 0, len(set.Scenarios))
	for _, s := range set.Scenarios {
		out = append(out, runner.Scenario{Name: s.ScenarioName, Values: s.Values})
	}
	return out, nil
}

func printEvent(ev report.Event) {
	switch ev.Type {
	case report.EventExecutionStart:
		fmt.Fprintf(os.Stderr, "▶ run %s started\n", ev.RunID)
	case report.EventBlockExecution:
		if ev.Block != nil {
			fmt.Fprintf(os.Stderr, "  %s %s (%s): %s\n",
				statusMark(ev.Block.Status), ev.Block.BlockID, ev.Block.BlockType, ev.Block.Message)
		}
	case report.EventExecutionComplete:
		fmt.Fprintf(os.Stderr, "■ run %s finished\n", ev.RunID)
	case report.EventError:
		fmt.Fprintf(os.Stderr, "✗ %v\n", ev.Data)
	}
}

func statusMark(s report.BlockStatus) string {
	if s == report.StatusSuccess {
		return "✓"
	}
	return "✗"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var _ browser.Runtime = (*static.Runtime)(nil)
