package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/db"
	"github.com/hpungsan/codyarch/internal/jina"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/mcp"
	"github.com/hpungsan/codyarch/internal/mention"
	"github.com/hpungsan/codyarch/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"search": true, "pdf": true, "persist": true,
	"list": true, "show": true, "delete": true,
	"mention": true, "clean": true, "serve": true,
	"help": true,
}

// valueFlags are global flags that consume the following argument.
var valueFlags = map[string]bool{
	"--workspace": true, "-w": true,
	"--limit-kind": true, "--limit": true, "--log-level": true,
}

// firstCommand returns the first argument after the global flags.
func firstCommand(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if valueFlags[arg] {
			i++
			continue
		}
		if len(arg) > 0 && arg[0] == '-' {
			if isHelpOrVersionArg(arg) {
				return arg
			}
			continue
		}
		return arg
	}
	return ""
}

func isHelpOrVersionArg(arg string) bool {
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	cmd := firstCommand(args)
	if cmd == "" {
		return false // No command → MCP server
	}
	return cliCommands[cmd] || isHelpOrVersionArg(cmd)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	return isHelpOrVersionArg(firstCommand(args))
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   codyarch

  Budgeted web and PDF results for coding assistants

  Usage: codyarch <command> [options]
         codyarch --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(&deps{cfg: config.DefaultConfig(), logger: zap.NewNop(), stdout: os.Stdout, stderr: os.Stderr})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	measurer, err := ops.PreloadMeasurers(cfg.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load encoding: %v\n", err)
		os.Exit(1)
	}

	fetcher := jina.New(jina.Config{
		SearchURL: cfg.SearchBaseURL,
		ReaderURL: cfg.ReaderBaseURL,
		APIKey:    cfg.APIKey,
		Timeout:   time.Duration(cfg.RequestTimeoutSec) * time.Second,
		RateLimit: cfg.RateLimitPerSec,
		Logger:    logger,
	})

	// CLI mode: known subcommand
	if isCLIMode(os.Args) {
		app := newCLIApp(&deps{
			cfg:        cfg,
			db:         database,
			fetcher:    fetcher,
			logger:     logger,
			measurer:   measurer,
			stdin:      os.Stdin,
			stdout:     os.Stdout,
			stderr:     os.Stderr,
			stdinPiped: stdinHasData,
			getwd:      os.Getwd,
		})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'codyarch --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	workspace, err := ops.FindWorkspace(cwd)
	if err != nil {
		logger.Info("no default workspace; tools need an explicit workspace", zap.String("cwd", cwd))
	}
	if err := mcp.Run(mcpEnv(cfg, database, fetcher, measurer, workspace, logger), workspace, logger, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// mcpEnv builds the environment for server mode. stdout carries the MCP
// stream, so print-mode mentions are dropped and no progress is drawn.
func mcpEnv(cfg *config.Config, database *sql.DB, fetcher ops.Fetcher, measurer ops.MeasurerFunc, workspace string, logger *zap.Logger) *ops.Env {
	var m mention.Mentioner = mention.Nop{}
	if cfg.MentionMode == config.MentionClipboard {
		m = mention.Clipboard{Workspace: workspace}
	}
	logger.Debug("server mode", zap.String("workspace", workspace), zap.String("mention_mode", cfg.MentionMode))
	return &ops.Env{
		Config:    cfg,
		DB:        database,
		Fetcher:   fetcher,
		Mentioner: m,
		Measurer:  measurer,
	}
}
