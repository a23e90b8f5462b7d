// cmd/sluice/main.go
//
// This is the entry point for the Sluice CLI.
//
// Subcommands:
//
//	sluice run      execute a demo batch through the pipeline and validator
//	sluice monitor  run the batch behind the live TUI monitor
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kestrelworks/sluice/internal/action"
	"github.com/kestrelworks/sluice/internal/config"
	"github.com/kestrelworks/sluice/internal/form"
	"github.com/kestrelworks/sluice/internal/history"
	"github.com/kestrelworks/sluice/internal/logging"
	"github.com/kestrelworks/sluice/internal/pipeline"
	"github.com/kestrelworks/sluice/internal/tui"
	"github.com/kestrelworks/sluice/internal/validator"
)

func main() {
	command := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	projectDir := flags.String("project", "", "path to the project directory (defaults to cwd)")
	count := flags.Int("count", 6, "number of demo actions to run")
	if err := flags.Parse(args); err != nil {
		die("parse flags: %v", err)
	}

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitSluiceDir(absoluteProject); err != nil {
		die("init .sluice: %v", err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}
	log, err := logging.New(absoluteProject)
	if err != nil {
		die("open log: %v", err)
	}
	defer log.Close()

	executor, err := buildExecutor(cfg, log)
	if err != nil {
		die("build pipeline: %v", err)
	}

	switch command {
	case "run":
		if err := runBatch(cfg, executor, *count); err != nil {
			die("run: %v", err)
		}
	case "monitor":
		go func() {
			if err := appendDemoActions(executor, *count); err != nil {
				return
			}
			executor.Forward(context.Background())
		}()
		if err := tui.Run(executor); err != nil {
			die("monitor: %v", err)
		}
	default:
		die("unknown command %q (want run or monitor)", command)
	}
}

func buildExecutor(cfg *config.Config, log *logging.Logger) (*pipeline.Executor, error) {
	processor, err := pipeline.NewProcessor(cfg.Capacity(), cfg.Refresh(),
		pipeline.WithProcessorLogger(log))
	if err != nil {
		return nil, err
	}
	opts := []pipeline.ExecutorOption{pipeline.WithExecutorLogger(log)}
	if cfg.Strict() {
		opts = append(opts, pipeline.WithStrictActions())
	}
	return pipeline.NewExecutor(processor, opts...)
}

func runBatch(cfg *config.Config, executor *pipeline.Executor, count int) error {
	if err := appendDemoActions(executor, count); err != nil {
		return err
	}

	start := time.Now()
	if err := executor.Forward(context.Background()); err != nil {
		return err
	}
	elapsed := time.Since(start)

	completed := executor.CompletedActions()
	failed := executor.FailedActions()
	fmt.Printf("Processed %d actions in %s (%d completed, %d failed, capacity %d)\n",
		count, elapsed.Round(time.Millisecond), len(completed), len(failed), cfg.Capacity())
	for _, a := range failed {
		fmt.Printf("  failed %s: %v\n", a.ID()[:8], a.Err())
	}

	ledger, err := history.New(filepath.Join(cfg.StateDir(), "runs.log"))
	if err != nil {
		return err
	}
	if err := ledger.Append(history.Record{
		Total:     count,
		Completed: len(completed),
		Failed:    len(failed),
		Capacity:  cfg.Capacity(),
		Elapsed:   elapsed,
	}); err != nil {
		return err
	}
	if recent, total := ledger.Tail(3); total > 1 {
		fmt.Printf("Recent runs (%d on file):\n", total)
		for _, r := range recent {
			fmt.Printf("  %s  %d/%d completed in %s\n",
				r.Timestamp.Format(time.RFC3339), r.Completed, r.Total, r.Elapsed.Round(time.Millisecond))
		}
	}

	return validateDemoResponse(cfg)
}

// appendDemoActions enqueues actions that sleep briefly and then either
// succeed or fail, so capacity waves are visible in the output.
func appendDemoActions(executor *pipeline.Executor, count int) error {
	for i := 0; i < count; i++ {
		i := i
		op := func(ctx context.Context) (any, error) {
			delay := time.Duration(50+rand.Intn(150)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			if i%5 == 4 {
				return nil, fmt.Errorf("demo action %d: upstream unavailable", i)
			}
			return fmt.Sprintf("result-%d", i), nil
		}
		a, err := action.New(op, action.WithRequest(map[string]any{
			"function":  "demo",
			"arguments": map[string]any{"index": i},
		}))
		if err != nil {
			return err
		}
		if err := executor.Append(a); err != nil {
			return err
		}
	}
	return nil
}

// validateDemoResponse runs a model-style response through the
// configured rulebook to show the repair paths.
func validateDemoResponse(cfg *config.Config) error {
	book, err := cfg.BuildRuleBook()
	if err != nil {
		return err
	}
	v, err := validator.New(validator.WithRuleBook(book))
	if err != nil {
		return err
	}

	f, err := form.NewBaseForm(
		form.Field{Name: "decision", Annotation: []string{"enum"}, Choices: []string{"approve", "reject", "escalate"}},
		form.Field{Name: "confidence", Annotation: []string{"float"}},
		form.Field{Name: "confirmed", Annotation: []string{"bool"}},
	)
	if err != nil {
		return err
	}

	response := map[string]any{
		"decision":   "aprove",
		"confidence": "confidence is about 0.92",
		"confirmed":  "Yes",
	}
	if err := v.ValidateResponse(context.Background(), f, response, true, true); err != nil {
		return err
	}

	fmt.Println("Validated demo response:")
	for _, field := range f.RequestedFields() {
		value, _ := f.Value(field)
		fmt.Printf("  %-10s %v (from %v)\n", field, value, response[field])
	}
	summary := v.Summarize()
	fmt.Printf("Validation log: %d attempts, %d errors\n", summary.TotalAttempts, len(summary.Errors))
	return nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
