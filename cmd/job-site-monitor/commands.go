package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/config"
	"github.com/Sternrassler/job-site-monitor/pkg/report"
	"github.com/Sternrassler/job-site-monitor/pkg/sampling"
	"github.com/Sternrassler/job-site-monitor/pkg/store"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"
)

// errReportLocked is returned when another report run holds the lock file.
var errReportLocked = errors.New("another report run is in progress")

const secretNamesUsage = "session-cookie|report-token"

var secretAccounts = map[string]string{
	config.SessionCookieAccount: config.SessionCookieAccount,
	"cookie":                    config.SessionCookieAccount,
	config.ReportTokenAccount:   config.ReportTokenAccount,
	"token":                     config.ReportTokenAccount,
}

func (a *app) estimateAction(c *cli.Context) error {
	period, err := client.ParsePeriod(c.String("period"))
	if err != nil {
		return err
	}

	svc, err := newServices(c.Context, a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, cached, err := svc.runner.Estimate(c.Context, period)
	if err != nil {
		return fmt.Errorf("estimate %s: %w", period, err)
	}
	a.logger.Debug().Str("period", string(period)).Bool("cached", cached).Msg("Estimate ready")

	if c.Bool("json") {
		return writeJSON(c.App.Writer, res)
	}
	fmt.Fprint(c.App.Writer, report.ResultSummary(periodTitle(period), res))
	return nil
}

func (a *app) reportAction(c *cli.Context) error {
	publish := c.Bool("publish")
	publisher := report.NewPublisher(a.cfg.Report.URL, a.cfg.Report.Token, a.cfg.Report.Timeout.Std())
	if publish && !publisher.Configured() {
		return fmt.Errorf("%w: set report.url and %s", report.ErrPublisherNotConfigured, config.ReportTokenEnv)
	}

	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(a.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire report lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", errReportLocked, a.cfg.LockPath())
	}
	defer lock.Unlock()

	svc, err := newServices(c.Context, a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := svc.runner.Run(c.Context)
	if err != nil {
		return fmt.Errorf("report run: %w", err)
	}

	if c.Bool("json") {
		if err := writeJSON(c.App.Writer, rep); err != nil {
			return err
		}
	} else {
		fmt.Fprint(c.App.Writer, report.Summary(rep))
	}

	if !c.Bool("no-store") {
		db, err := store.Open(a.cfg.StorePath())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveReport(c.Context, rep); err != nil {
			return err
		}
	}

	if publish {
		if err := publisher.Publish(c.Context, rep); err != nil {
			return fmt.Errorf("publish report %s: %w", rep.ID, err)
		}
	}
	return nil
}

func (a *app) regionalAction(c *cli.Context) error {
	period, err := client.ParsePeriod(c.String("period"))
	if err != nil {
		return err
	}

	regions := []sampling.Region{}
	if code := c.String("region"); strings.EqualFold(code, "all") {
		regions = sampling.Regions
	} else {
		region, err := sampling.LookupRegion(code)
		if err != nil {
			return err
		}
		regions = append(regions, region)
	}

	svc, err := newServices(c.Context, a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	results := make([]*sampling.RegionalResult, 0, len(regions))
	for _, region := range regions {
		res, err := svc.regional.Analyze(c.Context, region.Code, period, c.Int("pages"))
		if err != nil {
			if len(regions) == 1 {
				return err
			}
			a.logger.Warn().Err(err).Str("region", region.Code).Msg("Regional analysis failed, skipping")
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return fmt.Errorf("no region could be analyzed")
	}

	if c.Bool("json") {
		if len(regions) == 1 {
			return writeJSON(c.App.Writer, results[0])
		}
		return writeJSON(c.App.Writer, results)
	}
	for _, res := range results {
		fmt.Fprint(c.App.Writer, regionalSummary(res))
	}
	return nil
}

func (a *app) pagesAction(c *cli.Context) error {
	period, err := client.ParsePeriod(c.String("period"))
	if err != nil {
		return err
	}

	svc, err := newServices(c.Context, a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.regional.PageBreakdown(c.Context, c.Int("from"), c.Int("to"), period)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, stats)
	}
	fmt.Fprint(c.App.Writer, pagesSummary(stats))
	return nil
}

func (a *app) historyAction(c *cli.Context) error {
	period, err := client.ParsePeriod(c.String("period"))
	if err != nil {
		return err
	}

	db, err := store.Open(a.cfg.StorePath())
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Recent(c.Context, period, c.Int("limit"))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, records)
	}
	fmt.Fprint(c.App.Writer, historySummary(records))
	return nil
}

func (a *app) secretSetAction(c *cli.Context) error {
	account, err := secretAccount(c)
	if err != nil {
		return err
	}

	value, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && value == "" {
		return fmt.Errorf("read secret from stdin: %w", err)
	}
	if err := config.SetSecret(account, value); err != nil {
		return fmt.Errorf("store %s: %w", account, err)
	}
	fmt.Fprintf(c.App.Writer, "Stored %s in the keyring\n", account)
	return nil
}

func (a *app) secretDeleteAction(c *cli.Context) error {
	account, err := secretAccount(c)
	if err != nil {
		return err
	}
	if err := config.DeleteSecret(account); err != nil {
		return fmt.Errorf("delete %s: %w", account, err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s from the keyring\n", account)
	return nil
}

func secretAccount(c *cli.Context) (string, error) {
	name := strings.ToLower(strings.TrimSpace(c.Args().First()))
	account, ok := secretAccounts[name]
	if !ok {
		return "", fmt.Errorf("unknown secret %q (want %s)", c.Args().First(), secretNamesUsage)
	}
	return account, nil
}
