package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/ops"
	"github.com/suwonj/timeofme/internal/web"
)

// stdout is where command output goes; tests swap it.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "timeofme",
		Usage:   "Time tracking backup dashboard",
		Version: Version,
		Commands: []*cli.Command{
			listCmd(env),
			summaryCmd(env),
			reportCmd(env),
			exportCmd(env),
			serveCmd(env),
			cacheCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// backupFlags select which backup a command reads.
func backupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "backup", Aliases: []string{"b"}, Usage: "Backup file name (default: newest)"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read a local backup file instead of the repository"},
		&cli.BoolFlag{Name: "refresh", Usage: "Ignore the cached listing"},
	}
}

// reportFlags are shared by report and export.
func reportFlags() []cli.Flag {
	return append(backupFlags(),
		&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Anchor date YYYY-MM-DD (default: today)"},
		&cli.StringFlag{Name: "range", Aliases: []string{"r"}, Value: "day", Usage: "Range: day|week|month"},
		&cli.StringFlag{Name: "chart", Value: ops.ChartBar, Usage: "Chart: bar|pie"},
		&cli.BoolFlag{Name: "exclude-common", Aliases: []string{"x"}, Usage: "Leave out common activities such as sleep"},
	)
}

func reportInput(c *cli.Context) ops.ReportInput {
	return ops.ReportInput{
		Name:          c.String("backup"),
		Path:          c.String("file"),
		Date:          c.String("date"),
		Range:         c.String("range"),
		Chart:         c.String("chart"),
		ExcludeCommon: c.Bool("exclude-common"),
		Refresh:       c.Bool("refresh"),
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the newest backup files",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "refresh", Usage: "Ignore the cached listing"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListBackups(c.Context, env, ops.ListBackupsInput{Refresh: c.Bool("refresh")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Summarize yesterday: tracked time, timeline and tasks due",
		Flags: backupFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Summary(c.Context, env, ops.SummaryInput{
				Name:    c.String("backup"),
				Path:    c.String("file"),
				Refresh: c.Bool("refresh"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Tracked time per activity over a day, week or month",
		Flags: reportFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Report(c.Context, env, reportInput(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a report to a JSON file",
		Flags: append(reportFlags(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.timeofme/exports/<range>-<date>.json)"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env, ops.ExportInput{
				Report: reportInput(c),
				Path:   c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("port must be between 1 and 65535 (got %d)", port)))
			}
			srv := web.NewServer(env, Version, c.String("bind"), port)
			return web.Run(srv, env.Logger)
		},
	}
}

// cacheStatusOutput adds a readable age to the cache status.
type cacheStatusOutput struct {
	*ops.CacheStatusOutput
	ListingAge string `json:"listing_age,omitempty"`
}

// cacheCmd creates the cache command and its subcommands.
func cacheCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the local backup cache",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Remove cached listings and snapshots",
				Action: func(c *cli.Context) error {
					output, err := ops.ClearCache(c.Context, env)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "status",
				Usage: "Show cached row counts and listing age",
				Action: func(c *cli.Context) error {
					status, err := ops.CacheStatus(c.Context, env)
					if err != nil {
						return outputError(err)
					}
					output := cacheStatusOutput{CacheStatusOutput: status}
					if status.ListingFetchedAt != 0 {
						now := time.Now()
						if env.Now != nil {
							now = env.Now()
						}
						output.ListingAge = humanize.RelTime(time.Unix(status.ListingFetchedAt, 0), now, "ago", "from now")
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	tErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
}
