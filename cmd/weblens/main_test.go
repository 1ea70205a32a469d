package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/weblens/pkg/flow"
)

func TestDispatchUnknownCommand(t *testing.T) {
	handled, code := dispatchSubcommand([]string{"frobnicate"})
	if !handled {
		t.Fatal("unknown command should be handled")
	}
	if code != 1 {
		t.Fatalf("code=%d want 1", code)
	}
}

func TestDispatchEmptyArgsNotHandled(t *testing.T) {
	handled, _ := dispatchSubcommand(nil)
	if handled {
		t.Fatal("empty args should fall through to help")
	}
}

func TestVarFlagsParsing(t *testing.T) {
	vars := varFlags{}
	if err := vars.Set("email=a@example.com"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := vars.Set("note=has=equals"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if vars["email"] != "a@example.com" {
		t.Fatalf("email=%q", vars["email"])
	}
	if vars["note"] != "has=equals" {
		t.Fatalf("value after first = must survive, got %q", vars["note"])
	}
	if err := vars.Set("novalue"); err == nil {
		t.Fatal("missing = should be rejected")
	}
	if err := vars.Set("=value"); err == nil {
		t.Fatal("empty key should be rejected")
	}
}

func TestPageURLMapping(t *testing.T) {
	cases := []struct {
		rel  string
		want string
	}{
		{"login.html", "https://s.local/login"},
		{"index.html", "https://s.local/"},
		{"docs/start.htm", "https://s.local/docs/start"},
		{"docs/index.html", "https://s.local/docs"},
	}
	for _, tc := range cases {
		got := pageURL("https://s.local", filepath.FromSlash(tc.rel))
		if got != tc.want {
			t.Fatalf("pageURL(%q)=%q want %q", tc.rel, got, tc.want)
		}
	}
}

func TestLoadPagesRegistersHTMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "login.html"), "<html><body><h1>Login</h1></body></html>")
	writeFile(t, filepath.Join(dir, "sub", "cart.html"), "<html><body><h1>Cart</h1></body></html>")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	rt, err := loadPages(dir, "https://s.local/")
	if err != nil {
		t.Fatalf("loadPages: %v", err)
	}
	defer rt.Close()
}

func TestLoadPagesRejectsEmptyDir(t *testing.T) {
	if _, err := loadPages(t.TempDir(), "https://s.local"); err == nil {
		t.Fatal("a directory without pages should be rejected")
	}
}

func TestPickScenariosByName(t *testing.T) {
	g := &flow.Graph{
		Name: "demo",
		ScenarioSets: []flow.ScenarioSet{
			{Name: "smoke", Scenarios: []flow.Scenario{{ScenarioName: "a", Values: map[string]string{"k": "1"}}}},
			{Name: "full", Scenarios: []flow.Scenario{{ScenarioName: "b"}, {ScenarioName: "c"}}},
		},
	}

	got, err := pickScenarios(g, "")
	if err != nil {
		t.Fatalf("pickScenarios: %v", err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("default set should be the first, got %+v", got)
	}

	got, err = pickScenarios(g, "full")
	if err != nil {
		t.Fatalf("pickScenarios: %v", err)
	}
	if len(got) != 2 || got[1].Name != "c" {
		t.Fatalf("named set lookup, got %+v", got)
	}

	if _, err := pickScenarios(g, "nope"); err == nil {
		t.Fatal("unknown set should error")
	}
	if _, err := pickScenarios(&flow.Graph{Name: "empty"}, ""); err == nil {
		t.Fatal("flow without scenario sets should error")
	}
}

func TestValidateCommandFlagsDraftFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.json")
	writeFile(t, path, `{
	  "name": "draft",
	  "entry_block": "open",
	  "blocks": [{"id": "open", "type": "open_page"}]
	}`)

	err := runValidateCommand([]string{path})
	if err == nil {
		t.Fatal("draft flow should fail validation")
	}
	if exitCodeForError(err) != 2 {
		t.Fatalf("exit code=%d want 2", exitCodeForError(err))
	}
	if !strings.Contains(err.Error(), "problem") {
		t.Fatalf("err=%q", err)
	}
}

func TestValidateCommandAcceptsRunnableFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.json")
	writeFile(t, path, `{
	  "name": "ok",
	  "entry_block": "open",
	  "blocks": [{"id": "open", "type": "open_page", "url": "https://shop.example/"}]
	}`)

	if err := runValidateCommand([]string{path}); err != nil {
		t.Fatalf("runnable flow rejected: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
