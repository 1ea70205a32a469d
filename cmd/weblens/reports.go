package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/odvcencio/weblens/pkg/storage"
)

func runReportsCommand(args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = strings.TrimSpace(args[0])
	}
	switch sub {
	case "list":
		return runReportsList(args[1:])
	case "show":
		return runReportsShow(args[1:])
	case "delete":
		return runReportsDelete(args[1:])
	case "clear":
		return runReportsClear(args[1:])
	default:
		return fmt.Errorf("usage: weblens reports <list|show|delete|clear> [flags]")
	}
}

func openStore(configPath, storePath string) (*storage.Store, error) {
	path := strings.TrimSpace(storePath)
	if path == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Storage.Path
	}
	return storage.New(path)
}

func runReportsList(args []string) error {
	fs := flag.NewFlagSet("reports list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file path")
	storePath := fs.String("store", "", "SQLite database path")
	limit := fs.Int("limit", 50, "Maximum number of reports to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*configPath, *storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.ListReports(context.Background(), *limit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No stored reports.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tFLOW\tSCENARIO\tRESULT\tSTARTED\tDURATION")
	for _, s := range summaries {
		result := "passed"
		if !s.Success {
			result = "failed"
			if s.ErrorSummary != "" {
				result = "failed: " + s.ErrorSummary
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0fms\n",
			s.RunID, s.FlowName, s.ScenarioName, result,
			s.StartedAt.Format("2006-01-02 15:04:05"), s.DurationMS)
	}
	return w.Flush()
}

func runReportsShow(args []string) error {
	fs := flag.NewFlagSet("reports show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file path")
	storePath := fs.String("store", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: weblens reports show <run-id>")
	}

	store, err := openStore(*configPath, *storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := store.GetReport(context.Background(), fs.Arg(0))
	if errors.Is(err, storage.ErrNotFound) {
		return withExitCode(fmt.Errorf("no report for run %s", fs.Arg(0)), 2)
	}
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func runReportsDelete(args []string) error {
	fs := flag.NewFlagSet("reports delete", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file path")
	storePath := fs.String("store", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: weblens reports delete <run-id>")
	}

	store, err := openStore(*configPath, *storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteReport(context.Background(), fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("Deleted report %s.\n", fs.Arg(0))
	return nil
}

func runReportsClear(args []string) error {
	fs := flag.NewFlagSet("reports clear", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file path")
	storePath := fs.String("store", "", "SQLite database path")
	force := fs.Bool("force", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*configPath, *storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if !*force {
		fmt.Print("Delete ALL stored reports? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.ClearReports(context.Background()); err != nil {
		return err
	}
	fmt.Println("All reports deleted.")
	return nil
}
