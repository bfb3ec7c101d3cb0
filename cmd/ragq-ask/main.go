// Command ragq-ask answers one question through the in-process pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/ragq/internal/app"
	"github.com/kailas-cloud/ragq/internal/config"
	dbRedis "github.com/kailas-cloud/ragq/internal/db/redis"
	logpkg "github.com/kailas-cloud/ragq/internal/logger"
	answeruc "github.com/kailas-cloud/ragq/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragq/internal/usecase/health"
	"github.com/kailas-cloud/ragq/internal/usecase/usage"
	"github.com/kailas-cloud/ragq/internal/version"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "ragq-ask",
		Usage:     "Answer a question from the indexed passages",
		ArgsUsage: "<question>",
		Version:   version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file, overrides --env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline for the question",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw {statusCode, body} envelope",
			},
		},
		Action: askCommand,
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check the database, index and providers",
				Action: healthCommand,
			},
			{
				Name:  "usage",
				Usage: "Show token budgets",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "period",
						Usage: "Aggregation period (day, month)",
						Value: "day",
					},
				},
				Action: usageCommand,
			},
		},
	}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("a question is required", 2)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	pipeline, cleanup, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	resp := pipeline.Answers.Handle(ctx, answeruc.Request{UserQuery: question})
	return printResponse(c.App.Writer, c.App.ErrWriter, resp, c.Bool("json"))
}

func healthCommand(c *cli.Context) error {
	pipeline, cleanup, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer cleanup()

	report := pipeline.Health.Check(c.Context)
	return printHealth(c.App.Writer, report)
}

func usageCommand(c *cli.Context) error {
	period, err := usage.ParsePeriod(c.String("period"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	pipeline, cleanup, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer cleanup()

	printUsage(c.App.Writer, pipeline.Usage.GetReport(c.Context, period))
	return nil
}

func openPipeline(ctx context.Context, c *cli.Context) (*app.App, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logpkg.NewLogger("local", "ragq-ask", c.String("log-level"))
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		ClientName: "ragq-ask",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create store: %w", err)
	}
	if err := store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("database not ready: %w", err)
	}

	pipeline, err := app.Build(ctx, cfg, store, app.Overrides{}, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	return pipeline, func() {
		pipeline.Close()
		store.Close()
		_ = logger.Sync()
	}, nil
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.String("env"))
}

func printResponse(out, errOut io.Writer, resp answeruc.Response, raw bool) error {
	if raw {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return cli.Exit("", 1)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		var body answeruc.ErrorBody
		if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
			body = answeruc.ErrorBody{Error: "internal_error", Message: resp.Body}
		}
		errColor.Fprintf(errOut, "%d %s: ", resp.StatusCode, body.Error)
		fmt.Fprintln(errOut, body.Message)
		return cli.Exit("", 1)
	}

	var text string
	if err := json.Unmarshal([]byte(resp.Body), &text); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	okColor.Fprintln(out, text)

	if ans := resp.Answer; ans != nil {
		dimColor.Fprintf(errOut, "years=%s clubs=%s entities=%s passages=%d\n",
			ans.Metadata.Years, ans.Metadata.Clubs, ans.Entities, ans.Passages)
		if ans.IsDegraded() {
			warnColor.Fprintf(errOut, "degraded: fields=%s passes=%s\n",
				strings.Join(ans.Degraded, ","), strings.Join(ans.Skipped, ","))
		}
	}
	return nil
}

func printHealth(out io.Writer, report healthuc.Report) error {
	for _, name := range []string{
		healthuc.ComponentDatabase, healthuc.ComponentVectorIndex,
		healthuc.ComponentCompletion, healthuc.ComponentEmbedding,
	} {
		res, ok := report.Checks[name]
		if !ok {
			continue
		}
		c := okColor
		if res != healthuc.CheckOK {
			c = errColor
		}
		fmt.Fprintf(out, "%-14s ", name)
		c.Fprintln(out, res)
	}
	if report.Status != healthuc.Healthy {
		return cli.Exit(fmt.Sprintf("status: %s", report.Status), 1)
	}
	return nil
}

func printUsage(out io.Writer, report usage.Report) {
	dimColor.Fprintf(out, "period: %s\n", report.Period)
	for _, b := range report.Budgets {
		fmt.Fprintf(out, "%-14s ", b.Kind)
		switch {
		case b.Limit == 0:
			okColor.Fprintf(out, "%d used (unlimited)\n", b.Used)
		case b.Exhausted:
			errColor.Fprintf(out, "%d/%d exhausted\n", b.Used, b.Limit)
		default:
			warnColor.Fprintf(out, "%d/%d (%d left)\n", b.Used, b.Limit, b.Remaining)
		}
	}
}
