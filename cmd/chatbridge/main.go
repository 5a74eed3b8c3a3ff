// Package main is the entry point for the chat bridge server and interactive client.
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
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"chatbridge/config"
	"chatbridge/internal/app"
	"chatbridge/internal/cli"
	"chatbridge/internal/logging"
	"chatbridge/internal/version"
)

const shutdownTimeout = 30 * time.Second

type mode int

const (
	modeServer mode = iota
	modeChat
	modeModels
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// parseMode picks the subcommand. The chat aliases are matched before flag
// parsing because "--chat" and "--cli" look like flags.
func parseMode(args []string) (mode, []string) {
	if len(args) == 0 {
		return modeServer, args
	}
	switch args[0] {
	case "chat", "cli", "--chat", "--cli":
		return modeChat, args[1:]
	case "models":
		return modeModels, args[1:]
	case "serve", "server":
		return modeServer, args[1:]
	}
	return modeServer, args
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	m, rest := parseMode(args)

	fs := flag.NewFlagSet("chatbridge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	versionFlag := fs.Bool("version", false, "Print version information")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: chatbridge [serve|chat|models] [-version]")
		fmt.Fprintln(stderr, "  serve   run the HTTP server (default)")
		fmt.Fprintln(stderr, "  chat    interactive terminal chat (aliases: cli, --chat, --cli)")
		fmt.Fprintln(stderr, "  models  list models that support generateContent")
		fs.PrintDefaults()
	}
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *versionFlag {
		fmt.Fprintln(stdout, version.Info())
		return 0
	}

	result, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	cfg := result.Config

	// The conversation owns the terminal, so logs go to stderr and routine
	// per-attempt info is hidden unless a level was asked for explicitly.
	logOut := stdout
	logLevel := cfg.Logging.Level
	if m != modeServer {
		logOut = stderr
		if logLevel == "" || strings.EqualFold(logLevel, "info") {
			logLevel = "warn"
		}
	}
	logger, err := logging.New(cfg.Logging.Format, logLevel, logOut)
	if err != nil {
		fmt.Fprintf(stderr, "invalid logging config: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	switch m {
	case modeChat:
		return runChat(result, stdin, stdout, stderr)
	case modeModels:
		return runModels(result, stdout)
	default:
		return runServer(result)
	}
}

func runServer(result *config.LoadResult) int {
	cfg := result.Config

	slog.Info("starting chatbridge",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	application, err := app.New(app.Config{AppConfig: result})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		return 1
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("chat endpoint ready",
		"chat", fmt.Sprintf("POST http://localhost:%s/chat", cfg.Server.Port),
		"health", fmt.Sprintf("http://localhost:%s/health", cfg.Server.Port),
	)

	if err := application.Start(":" + cfg.Server.Port); err != nil {
		slog.Error("server failed", "error", err)
		return 1
	}
	return 0
}

func runChat(result *config.LoadResult, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg := result.Config

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sender cli.Sender
	if cfg.CLI.ServerURL != "" {
		slog.Debug("sending messages to server", "url", cfg.CLI.ServerURL)
		sender = cli.NewRemoteSender(cfg.CLI.ServerURL, cfg.Server.MasterKey)
	} else {
		local := *cfg
		local.Metrics.Enabled = false
		application, err := app.New(app.Config{
			AppConfig:   &config.LoadResult{Config: &local, ConfigFile: result.ConfigFile},
			Interactive: true,
		})
		if err != nil {
			fmt.Fprintf(stderr, "failed to initialize: %v\n", err)
			return 1
		}
		sender = cli.NewLocalSender(application.Resolver())
	}

	if err := cli.NewSession(sender, stdin, stdout, stderr).Run(ctx); err != nil {
		return 1
	}
	return 0
}

func runModels(result *config.LoadResult, stdout io.Writer) int {
	local := *result.Config
	local.Metrics.Enabled = false

	application, err := app.New(app.Config{AppConfig: &config.LoadResult{Config: &local, ConfigFile: result.ConfigFile}})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), local.Gemini.Timeout)
	defer cancel()

	models, err := application.ListModels(ctx)
	if err != nil {
		slog.Error("failed to list models", "error", err)
		return 1
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CANDIDATE\tDISPLAY NAME\tINPUT TOKENS\tOUTPUT TOKENS")
	for _, m := range models {
		fmt.Fprintf(tw, "%s/%s\t%s\t%d\t%d\n", m.APIVersion, m.ID, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}
