package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fabline/fabline/cmd/fablinectl/cli"
	"github.com/fabline/fabline/internal/app"
	"github.com/fabline/fabline/internal/platform/db"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/jobs"
)

const usage = `usage: fablinectl <command> [flags]

commands:
  migrate                     apply postgres migrations
  sequences                   print numbering counters
  jobs stats                  print queue counters
  jobs pending [-n N]         list queued deliveries
  jobs archived [-n N]        list failed deliveries
  jobs test-mail -to ADDR     enqueue a test email
  jobs test-sms -to PHONE     enqueue a test SMS
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	switch args[0] {
	case "migrate":
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		return 0
	case "sequences":
		return runSequences(ctx, cfg, logger, stdout)
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	}
	fmt.Fprint(stderr, usage)
	return 2
}

func runSequences(ctx context.Context, cfg *app.Config, logger *slog.Logger, stdout io.Writer) int {
	if cfg.StoreDriver != app.StorePostgres {
		logger.Error("sequences command requires STORE_DRIVER=postgres")
		return 1
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()
	counters, err := sequence.NewService(sequence.NewPGRepository(pool), logger).List(ctx)
	if err != nil {
		logger.Error("list sequences", slog.Any("error", err))
		return 1
	}
	return writeJSON(stdout, counters)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("jobs "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	size := fs.Int("n", 10, "page size")
	to := fs.String("to", "", "recipient")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	c := cli.NewJobsCLI(cfg.Queue())
	defer c.Close()

	var out any
	var err error
	switch args[0] {
	case "stats":
		out, err = c.InspectQueue(ctx)
	case "pending":
		out, err = c.ListPending(ctx, *size)
	case "archived":
		out, err = c.ListArchived(ctx, *size)
	case "test-mail":
		out, err = c.Trigger(ctx, jobs.TaskSendMail, *to)
	case "test-sms":
		out, err = c.Trigger(ctx, jobs.TaskSendSMS, *to)
	default:
		fmt.Fprint(stderr, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "jobs %s: %v\n", args[0], err)
		return 1
	}
	return writeJSON(stdout, out)
}

func writeJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}
