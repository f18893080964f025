// Command integrityctl runs the batch integrity analyses from the command line.
//
//	integrityctl scan       [-format json|csv] [-input sessions.csv]
//	integrityctl delete     -ids id1,id2,...
//	integrityctl conflicts  [-format json|csv] [-input sessions.csv]
//	integrityctl reconcile  -course ID -start YYYY-MM-DD -end YYYY-MM-DD [-format json|csv] [-input sessions.csv]
//
// With -input the analysis runs over the sessions in the CSV file instead of
// the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/session-integrity/internal/config"
	"github.com/example/session-integrity/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "integrityctl: read .env: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *environment, args []string) error
}

var commands = []command{
	{name: "scan", usage: "report redundant session records", run: runScan},
	{name: "delete", usage: "delete redundant session records", run: runDelete},
	{name: "conflicts", usage: "report overlapping committed sessions", run: runConflicts},
	{name: "reconcile", usage: "compare teacher and team-leader attendance", run: runReconcile},
}

// environment is what every subcommand needs.
type environment struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "integrityctl: unknown command %q\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "integrityctl: %v\n", err)
		return exitError
	}
	env := &environment{
		cfg:    cfg,
		logger: logging.New(stderr, cfg.LogLevel, cfg.LogFormat),
		stdout: stdout,
	}

	if err := cmd.run(ctx, env, args[1:]); err != nil {
		var uErr *usageError
		if errors.As(err, &uErr) {
			fmt.Fprintf(stderr, "integrityctl %s: %v\n", cmd.name, uErr.err)
			return exitUsage
		}
		fmt.Fprintf(stderr, "integrityctl %s: %v\n", cmd.name, err)
		return exitError
	}
	return exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: integrityctl <command> [flags]")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.usage)
	}
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// parseFlags parses args and rewrites flag errors as usage errors.
func parseFlags(fset *flag.FlagSet, args []string) error {
	fset.SetOutput(io.Discard)
	if err := fset.Parse(args); err != nil {
		return &usageError{err: err}
	}
	if fset.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(fset.Args(), " "))
	}
	return nil
}

func checkFormat(format string) error {
	switch format {
	case "json", "csv":
		return nil
	}
	return usagef("-format must be json or csv, got %q", format)
}
