package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// levelRouter is a slog.Handler that routes WARN to stdout and ERROR+ to
// stderr. Records at INFO reach the terminal only when min allows it; the
// optional file handler receives every INFO+ record.
type levelRouter struct {
	min    slog.Level
	stdout slog.Handler
	stderr slog.Handler
	file   slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	if lr.file != nil && level >= slog.LevelInfo {
		return true
	}
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if lr.file != nil {
		if err := lr.file.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level < lr.min {
		return nil
	}
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
	if lr.file != nil {
		next.file = lr.file.WithAttrs(attrs)
	}
	return next
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	next := &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
	if lr.file != nil {
		next.file = lr.file.WithGroup(name)
	}
	return next
}

// setupLogger configures structured logging. WARN goes to stdout (INFO too
// when verbose), ERROR goes to stderr. If logPath is non-empty, all INFO+
// records are also written to that file. Returns a cleanup function that
// closes the log file (if opened).
func setupLogger(logPath string, verbose bool, stdout, stderr io.Writer) (func(), error) {
	handler := &levelRouter{min: slog.LevelWarn}
	if verbose {
		handler.min = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		handler.file = slog.NewTextHandler(f, opts)
	}

	handler.stdout = slog.NewTextHandler(stdout, opts)
	handler.stderr = slog.NewTextHandler(stderr, opts)
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

const usage = `Usage: izmenjava [flags] <command> [command flags]

Flags:
  -d, -data <dir>         data directory (default: data)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -v, -verbose            log INFO records to stdout
  -h, -help               show this help and exit

Accounts:
  signup -u <name> [-p <password>] -r <donor|recipient>
                          create an account (a password is generated if -p is omitted)
  login -u <name> -p <password>
                          start a session
  logout                  end the session
  whoami                  show the logged in account

Browsing:
  items                   list available items
  categories              list categories of available items
  search -c <category>    list available items in a category

Donors:
  donate -c <category> -desc <text> [-cond <condition>]
                          list a new item (condition defaults to Good)
  mine                    list your items and pending request count
  inbox                   list pending requests for your items
  decide -id <request> -approve|-reject
                          resolve a pending request

Recipients:
  request -item <id>      request an available item
  requests                list your requests
  received                list items donated to you

Maintenance:
  recover                 finish approvals interrupted by a crash
`

// run parses the global flags, sets up logging and dispatches one command.
// It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("izmenjava", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dataDir string
	fs.StringVar(&dataDir, "data", "data", "")
	fs.StringVar(&dataDir, "d", "data", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.BoolVar(&verbose, "v", false, "")

	fs.Usage = func() {
		fmt.Fprint(stdout, usage)
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "missing command")
		fs.Usage()
		return 2
	}

	closeLog, err := setupLogger(logPath, verbose, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	a, err := openApp(ctx, dataDir, stdout, stderr)
	if err != nil {
		slog.Error("failed to open data directory", "dir", dataDir, "error", err)
		return 1
	}
	defer a.close()

	if err := cmd(ctx, a, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "%s: %v\n", fs.Arg(0), err)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
