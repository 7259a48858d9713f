package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/output"
	"github.com/xdung24/restload/internal/report"
	"github.com/xdung24/restload/internal/runner"
)

type runOptions struct {
	root   *rootOptions
	target targetFlags

	stages       string
	timeout      time.Duration
	gracefulStop time.Duration
	maxRedirects int
	trendStats   string
	insecure     bool

	quiet   bool
	json    bool
	out     string
	refresh time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	o := &runOptions{root: root}

	cmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Run a load-test scenario",
		Long: `Run a built-in scenario or a scenario file and print a summary.

Examples:
  restload run get-user
  restload run upsert-user --base-url http://staging:8000 --token "$TOKEN"
  restload run get-user --stages 10s:5,20s:5,5s:0 --out report.html
  restload run --file scenarios/upsert-user.yaml --json > summary.json

Exit codes: 0 when every threshold passed, 99 when a threshold failed,
105 when the run was interrupted, 1 on any other error.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	o.target.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&o.stages, "stages", "", "Override the ramp stages, e.g. 30s:10,30s:20,20s:0")
	flags.DurationVar(&o.timeout, "timeout", 0, "Per-request timeout (default 30s)")
	flags.DurationVar(&o.gracefulStop, "graceful-stop", 0, "Time VUs get to finish their iteration at the end (default 30s)")
	flags.IntVar(&o.maxRedirects, "max-redirects", -1, "Override the number of redirects followed per request")
	flags.StringVar(&o.trendStats, "summary-trend-stats", "", "Trend statistics in the summary, e.g. avg,p(95),p(99.9)")
	flags.BoolVar(&o.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "Only print PASSED or FAILED")
	flags.BoolVar(&o.json, "json", false, "Write the JSON summary to stdout; the console output moves to stderr")
	flags.StringVarP(&o.out, "out", "o", "", "Write a report file (.json, .html or .xml for JUnit)")
	flags.DurationVar(&o.refresh, "refresh", output.DefaultUpdateInterval, "Progress line interval when stdout is not a terminal")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(o.root.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sc, settings, err := o.target.load(args)
	if err != nil {
		return err
	}

	if o.stages != "" {
		stages, err := parseStages(o.stages)
		if err != nil {
			return fmt.Errorf("invalid --stages: %w", err)
		}
		sc.Options.Stages = stages
	}
	if o.maxRedirects >= 0 {
		sc.Options.MaxRedirects = o.maxRedirects
	}
	if o.trendStats != "" {
		stats, err := parseTrendStats(o.trendStats)
		if err != nil {
			return err
		}
		sc.Options.SummaryTrendStats = stats
	}

	httpCfg := runner.DefaultHTTPClientConfig()
	httpCfg.Timeout = settings.Timeout.GetDuration(httpCfg.Timeout)
	if o.timeout > 0 {
		httpCfg.Timeout = o.timeout
	}
	httpCfg.InsecureSkipVerify = settings.InsecureSkipVerify || o.insecure

	gracefulStop := settings.GracefulStop.GetDuration(runner.DefaultGracefulStop)
	if o.gracefulStop > 0 {
		gracefulStop = o.gracefulStop
	}

	consoleOut := cmd.OutOrStdout()
	if o.json {
		consoleOut = cmd.ErrOrStderr()
	}
	console := output.NewConsole(output.ConsoleConfig{
		Writer:         consoleOut,
		Quiet:          o.quiet,
		NoColor:        o.root.noColor,
		UpdateInterval: o.refresh,
	})

	eng, err := runner.NewEngine(sc, runner.Options{
		HTTP:         httpCfg,
		GracefulStop: gracefulStop,
		Logger:       logger,
		OnTick:       console.Update,
	})
	if err != nil {
		return err
	}

	console.PrintHeader(sc)

	result, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}

	console.PrintSummary(result)

	if o.json {
		if err := report.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("failed to write JSON summary: %w", err)
		}
	}
	if o.out != "" {
		if err := report.WriteFile(result, o.out); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", o.out))
		if !o.quiet {
			fmt.Fprintf(consoleOut, "Report: %s\n", o.out)
		}
	}

	if failed := result.FailedThresholds(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, t := range failed {
			names = append(names, fmt.Sprintf("%s '%s'", t.Selector, t.Expression))
		}
		return &ExitCodeError{
			Code: ExitThresholdsFailed,
			Err:  fmt.Errorf("thresholds failed: %s", strings.Join(names, ", ")),
		}
	}
	if result.Interrupted {
		return &ExitCodeError{Code: ExitAborted, Err: errors.New("run interrupted before the schedule completed")}
	}
	return nil
}

func parseTrendStats(s string) ([]string, error) {
	var stats []string
	for _, stat := range strings.Split(s, ",") {
		stat = strings.TrimSpace(stat)
		if stat == "" {
			continue
		}
		if !metrics.IsTrendStat(stat) {
			return nil, fmt.Errorf("invalid --summary-trend-stats: unknown statistic %q", stat)
		}
		stats = append(stats, stat)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("invalid --summary-trend-stats: no statistics given")
	}
	return stats, nil
}
