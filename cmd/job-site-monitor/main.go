package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/config"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries the configuration resolved in the Before hook to the actions.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

func newApp() *cli.App {
	a := &app{}
	return &cli.App{
		Name:    "job-site-monitor",
		Usage:   "Estimate partner listing counts on a paged job search",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"JSM_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "human-readable log output",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			{
				Name:  "estimate",
				Usage: "Estimate listing counts per source for one period",
				Flags: []cli.Flag{
					periodFlag(),
					jsonFlag(),
				},
				Action: a.estimateAction,
			},
			{
				Name:  "report",
				Usage: "Estimate both periods, store the report and optionally publish it",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "publish", Usage: "POST the report to the configured endpoint"},
					&cli.BoolFlag{Name: "no-store", Usage: "do not record the report in the history database"},
					jsonFlag(),
				},
				Action: a.reportAction,
			},
			{
				Name:  "regional",
				Usage: "Sample a region and extrapolate the source breakdown",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "region", Aliases: []string{"r"}, Value: "A000", Usage: "region code, or \"all\""},
					periodFlag(),
					&cli.IntFlag{Name: "pages", Usage: "pages to sample (default from config)"},
					jsonFlag(),
				},
				Action: a.regionalAction,
			},
			{
				Name:  "pages",
				Usage: "Show the source breakdown of a range of result pages",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "from", Value: 1, Usage: "first page"},
					&cli.IntFlag{Name: "to", Value: 5, Usage: "last page"},
					periodFlag(),
					jsonFlag(),
				},
				Action: a.pagesAction,
			},
			{
				Name:  "history",
				Usage: "List stored estimates, newest first",
				Flags: []cli.Flag{
					periodFlag(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "number of records"},
					jsonFlag(),
				},
				Action: a.historyAction,
			},
			{
				Name:  "serve",
				Usage: "Serve estimates, health and metrics over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":8080", EnvVars: []string{"JSM_ADDR"}, Usage: "listen address"},
				},
				Action: a.serveAction,
			},
			{
				Name:  "secret",
				Usage: "Manage secrets in the OS keyring",
				Subcommands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "Store a secret read from stdin",
						ArgsUsage: secretNamesUsage,
						Action:    a.secretSetAction,
					},
					{
						Name:      "delete",
						Usage:     "Remove a secret",
						ArgsUsage: secretNamesUsage,
						Action:    a.secretDeleteAction,
					},
				},
			},
		},
	}
}

func periodFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "period",
		Aliases: []string{"p"},
		Value:   string(client.PeriodAll),
		Usage:   "ALL or TODAY",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"}
}

// before loads the configuration: defaults, then the file, then the
// environment, then flags. Secrets are resolved last.
func (a *app) before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.Bool("pretty") {
		cfg.Logging.Pretty = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ResolveSecrets()

	logCfg := cfg.LoggingConfig()
	logCfg.Output = c.App.ErrWriter
	logging.Setup(logCfg)

	a.cfg = cfg
	a.logger = logging.NewLogger("cli")
	return nil
}
