package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/mention"
	"github.com/hpungsan/codyarch/internal/ops"
	"github.com/hpungsan/codyarch/internal/result"
	"github.com/hpungsan/codyarch/internal/web"
)

// deps are the collaborators shared by every command.
type deps struct {
	cfg     *config.Config
	db      *sql.DB
	fetcher ops.Fetcher
	logger  *zap.Logger

	// measurer is shared by every command; nil loads measurers on demand.
	measurer ops.MeasurerFunc

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// stdinPiped reports whether stdin carries data rather than a terminal.
	stdinPiped func() bool
	// getwd is the start directory for workspace discovery.
	getwd func() (string, error)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "codyarch",
		Usage:   "Budgeted web and PDF results for coding assistants",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace root (default: nearest .codyarchitect or .git)"},
			&cli.StringFlag{Name: "limit-kind", Usage: "Budget metric: chars|tokens"},
			&cli.IntFlag{Name: "limit", Usage: "Budget value in limit-kind units"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error"},
		},
		Before: func(c *cli.Context) error {
			lvl := c.String("log-level")
			if lvl == "" || d == nil || d.cfg == nil {
				return nil
			}
			logger, err := logging.New(lvl, d.cfg.LogFormat)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			d.logger = logger
			return nil
		},
		Commands: []*cli.Command{
			searchCmd(d),
			pdfCmd(d),
			persistCmd(d),
			listCmd(d),
			showCmd(d),
			deleteCmd(d),
			mentionCmd(d),
			cleanCmd(d),
			serveCmd(d),
		},
	}
	if d != nil && d.stdout != nil {
		app.Writer = d.stdout
		app.ErrWriter = d.stderr
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// searchCmd creates the search command.
func searchCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the web and persist the budgeted results",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "site", Usage: "Restrict results to one site"},
		},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			limit, err := limitOverride(c, d.cfg.Limit())
			if err != nil {
				return d.fail(err)
			}
			ws, err := d.workspace(c)
			if err != nil {
				return d.fail(err)
			}

			output, err := ops.WebSearch(d.context(c), d.env(ws), ops.WebSearchInput{
				Query:     query,
				Site:      c.String("site"),
				Workspace: ws,
				Limit:     limit,
			})
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// pdfCmd creates the pdf command.
func pdfCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "pdf",
		Usage:     "Extract a PDF's text and persist it",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			limit, err := limitOverride(c, d.cfg.Limit())
			if err != nil {
				return d.fail(err)
			}
			ws, err := d.workspace(c)
			if err != nil {
				return d.fail(err)
			}

			output, err := ops.ReadPDF(d.context(c), d.env(ws), ops.ReadPDFInput{
				URL:       c.Args().First(),
				Workspace: ws,
				Limit:     limit,
			})
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// persistCmd creates the persist command.
func persistCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "persist",
		Usage: "Budget and persist a raw result (reads the result from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: string(result.KindWeb), Usage: "Result kind: web|pdf"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true, Usage: "Search query or PDF URL"},
		},
		Action: func(c *cli.Context) error {
			// Require stdin input
			if !d.stdinPiped() {
				return d.fail(errors.NewInvalidRequest("raw result must be piped via stdin"))
			}
			raw, err := io.ReadAll(d.stdin)
			if err != nil {
				return d.fail(errors.NewInternal(err))
			}

			limit, err := limitOverride(c, d.cfg.Limit())
			if err != nil {
				return d.fail(err)
			}
			ws, err := d.workspace(c)
			if err != nil {
				return d.fail(err)
			}

			output, err := ops.Persist(d.context(c), d.env(ws), ops.PersistInput{
				Kind:      result.Kind(c.String("kind")),
				Query:     c.String("query"),
				RawResult: string(raw),
				Workspace: ws,
				Limit:     limit,
			})
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List persisted results, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind: web|pdf"},
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "List results from every workspace"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: ops.DefaultListLimit, Usage: "Page size (max 100)"},
			&cli.IntFlag{Name: "offset", Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Kind:   c.String("kind"),
				Limit:  c.Int("count"),
				Offset: c.Int("offset"),
			}
			if !c.Bool("all") {
				ws, err := d.workspace(c)
				if err != nil {
					return d.fail(err)
				}
				input.Workspace = ws
			}

			output, err := ops.List(d.context(c), d.env(input.Workspace), input)
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a persisted result by ID",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-text", Usage: "Exclude the document text from output"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{ID: c.Args().First()}
			if c.Bool("no-text") {
				includeText := false
				input.IncludeText = &includeText
			}

			output, err := ops.Fetch(d.context(c), d.env(""), input)
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a persisted result and its file",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(d.context(c), d.env(""), ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// mentionCmd creates the mention command.
func mentionCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "mention",
		Usage:     "Mention a file, copying it into the workspace when it lies outside",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			ws, err := d.workspace(c)
			if err != nil {
				return d.fail(err)
			}

			output, err := ops.MentionFile(d.context(c), d.env(ws), ops.MentionFileInput{
				Path:      c.Args().First(),
				Workspace: ws,
			})
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// cleanCmd creates the clean command.
func cleanCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Remove files copied by mention",
		Action: func(c *cli.Context) error {
			ws, err := d.workspace(c)
			if err != nil {
				return d.fail(err)
			}

			output, err := ops.CleanTemp(d.context(c), d.env(ws), ops.CleanTempInput{Workspace: ws})
			if err != nil {
				return d.fail(err)
			}

			return d.outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the context provider endpoint and result pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := d.cfg.ProviderBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := d.cfg.ProviderPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 0 || port > 65535 {
				return d.fail(errors.NewInvalidRequest(fmt.Sprintf("port out of range: %d", port)))
			}

			cfg, err := providerConfig(c, d.cfg)
			if err != nil {
				return d.fail(err)
			}
			env := d.env("")
			env.Config = cfg
			// The provider returns content inline; nothing is mentioned.
			env.Mentioner = nil

			srv, err := web.NewServer(env, d.logger, Version, bind, port)
			if err != nil {
				return d.fail(errors.NewInternal(err))
			}
			if err := web.Run(srv, d.logger); err != nil {
				return d.fail(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// env builds the operation environment for a command run in workspace ws.
func (d *deps) env(ws string) *ops.Env {
	m, err := mention.New(mention.Mode(d.cfg.MentionMode), d.stderr, ws)
	if err != nil {
		d.logger.Warn("mention disabled", zap.Error(err))
		m = mention.Nop{}
	}
	return &ops.Env{
		Config:    d.cfg,
		DB:        d.db,
		Fetcher:   d.fetcher,
		Mentioner: m,
		Progress:  d.stderr,
		Measurer:  d.measurer,
	}
}

func (d *deps) context(c *cli.Context) context.Context {
	return logging.WithLogger(c.Context, d.logger)
}

// workspace resolves --workspace or discovers the workspace from the working directory.
func (d *deps) workspace(c *cli.Context) (string, error) {
	start, err := d.getwd()
	if err != nil {
		return "", errors.NewNoWorkspace("")
	}
	return ops.ResolveWorkspace(c.String("workspace"), start)
}

// limitOverride returns the budget from --limit-kind/--limit, or nil when neither is set.
func limitOverride(c *cli.Context, base budget.Limit) (*budget.Limit, error) {
	if !c.IsSet("limit-kind") && !c.IsSet("limit") {
		return nil, nil
	}
	limit := base
	if c.IsSet("limit-kind") {
		kind, err := budget.ParseMetric(c.String("limit-kind"))
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		limit.Kind = kind
	}
	if c.IsSet("limit") {
		limit.Value = c.Int("limit")
	}
	return &limit, nil
}

// providerConfig applies the global limit flags to the provider budget.
// Flags that are not set keep the configured provider kind and value.
func providerConfig(c *cli.Context, cfg *config.Config) (*config.Config, error) {
	limit, err := limitOverride(c, cfg.ProviderLimit())
	if err != nil || limit == nil {
		return cfg, err
	}
	out := *cfg
	out.ProviderLimitKind = string(limit.Kind)
	out.ProviderLimitValue = limit.Value
	return &out, nil
}

// outputJSON marshals result to stdout as indented JSON.
func (d *deps) outputJSON(v any) error {
	enc := json.NewEncoder(d.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail logs err and formats it for the CLI. A missing workspace is a no-op.
func (d *deps) fail(err error) error {
	if errors.Is(err, errors.ErrNoWorkspace) {
		d.logger.Warn("no workspace; nothing written", zap.Error(err))
		return nil
	}
	return outputError(err)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if aErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
