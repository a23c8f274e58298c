// Command recordctl manages the classroom records directly on the tables,
// without going through the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"classroom/internal/activities"
	"classroom/internal/applog"
	"classroom/internal/attendance"
	"classroom/internal/config"
	"classroom/internal/report"
	"classroom/internal/store"
	"classroom/internal/students"
)

const usage = `
Student Record System (CLI)

Usage:
  recordctl <domain> <action> [options]

Domains and actions:
  student add --name <name> --email <email> [--year <year>] [--status <active|inactive>]
  student list [--status <active|inactive>]
  student find (--id <id> | --email <email>) [--get <field>]
  student set-status --id <id> --status <active|inactive>

  attendance mark --studentId <id> --date <YYYY-MM-DD> --status <present|absent|late> [--note <text>]
  attendance list [--studentId <id>] [--from <YYYY-MM-DD>] [--to <YYYY-MM-DD>]

  activity add --studentId <id> --type <assignment|quiz|participation|other> --description <text>
  activity list [--studentId <id>] [--from <YYYY-MM-DD>] [--to <YYYY-MM-DD>]

  report students [--format <csv|json>] [--out <path>]
  report attendance [--format <csv|json>] [--from <YYYY-MM-DD>] [--to <YYYY-MM-DD>] [--studentId <id>] [--out <path>]
  report activities [--format <csv|json>] [--from <YYYY-MM-DD>] [--to <YYYY-MM-DD>] [--studentId <id>] [--out <path>]
  report student-summary --studentId <id> [--format <json|csv>] [--out <path>]

Examples:
  recordctl student add --name "Alice" --email "alice@example.com" --year "2025"
  recordctl attendance mark --studentId <id> --date 2025-11-30 --status present
  recordctl activity add --studentId <id> --type assignment --description "Math HW1"
  recordctl report students --format csv
`

func main() {
	os.Exit(run(context.Background(), config.Load(), os.Args[1:], os.Stdout, os.Stderr))
}

// app bundles the services a command needs.
type app struct {
	log        *applog.Logger
	students   *students.Service
	attendance *attendance.Service
	activities *activities.Service
	reports    *report.Generator
	out        io.Writer
}

func run(ctx context.Context, cfg config.App, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer backend.Close()

	logger := applog.New(cfg.LogsDir)
	st := students.NewService(backend, logger)
	att := attendance.NewService(attendance.NewRepository(backend), st, logger)
	acts := activities.NewService(backend, st, logger)
	a := &app{
		log:        logger,
		students:   st,
		attendance: att,
		activities: acts,
		reports:    report.NewGenerator(cfg.ReportsDir, st, att, acts),
		out:        stdout,
	}

	domain, action, rest := args[0], "", args[1:]
	if len(rest) > 0 {
		action, rest = rest[0], rest[1:]
	}

	var cmdErr error
	switch domain {
	case "student":
		cmdErr = a.student(ctx, action, rest)
	case "attendance":
		cmdErr = a.attendanceCmd(ctx, action, rest)
	case "activity":
		cmdErr = a.activity(ctx, action, rest)
	case "report":
		cmdErr = a.report(ctx, action, rest)
	default:
		cmdErr = usageError("Unknown domain: %s. Use --help for options.", domain)
	}
	if cmdErr != nil {
		var ue usageErr
		if errors.As(cmdErr, &ue) {
			fmt.Fprintln(stderr, ue)
			return 1
		}
		logger.Error("%s %s: %v", domain, action, cmdErr)
		fmt.Fprintf(stderr, "Error: %v\n", cmdErr)
		return 1
	}
	return 0
}

func openBackend(ctx context.Context, cfg config.App) (store.Backend, error) {
	if cfg.StoreBackend == "postgres" {
		pg, err := store.NewPostgresBackend(ctx, cfg.DatabaseURL, store.Collections...)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	fb, err := store.NewFileBackend(cfg.DataDir, store.Collections...)
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// usageErr is a bad invocation. It is printed as-is and not logged.
type usageErr string

func (e usageErr) Error() string { return string(e) }

func usageError(format string, args ...any) error {
	return usageErr(fmt.Sprintf(format, args...))
}
