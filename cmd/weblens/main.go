// Command weblens runs zero-code browser test flows from the command
// line: validate a flow file, execute it against a configured runtime,
// run scenario suites, and inspect stored execution reports.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/weblens/pkg/config"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	if handled, exitCode := dispatchSubcommand(args); handled {
		os.Exit(exitCode)
	}
	printHelp()
	os.Exit(1)
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return true, 0
	case "--help", "-h", "help":
		printHelp()
		return true, 0
	case "validate":
		return true, runCommand(runValidateCommand, args[1:])
	case "run":
		return true, runCommand(runRunCommand, args[1:])
	case "suite":
		return true, runCommand(runSuiteCommand, args[1:])
	case "reports":
		return true, runCommand(runReportsCommand, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(os.Stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(os.Stderr, "Run 'weblens --help' for usage.")
		return true, 1
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

// loadConfig resolves the effective configuration, preferring an
// explicit --config path over the user and project config files.
func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func printVersion() {
	fmt.Printf("weblens %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Print(`weblens - zero-code browser test runner

Usage:
  weblens <command> [flags]

Commands:
  validate <flow.json>        Check a flow for structural problems
  run <flow.json>             Execute a flow and print the report JSON
  suite <flow.json>           Execute every scenario set in a flow
  reports <list|show|delete|clear>
                              Inspect stored execution reports
  version                     Print version information
  help                        Show this help

Run flags:
  --config <path>   Configuration file (default: ~/.weblens/config.yaml)
  --pages <dir>     Serve pages from a directory of HTML fixtures
  --var key=value   Set an initial variable (repeatable)
  --store <path>    Persist the report to this SQLite database

Use "weblens <command> --help" style flags on each command for details.
`)
}
