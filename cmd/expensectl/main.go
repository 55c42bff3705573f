// Command expensectl lists and edits expenses through the HTTP API.
package main

import (
	"context"
	"os"

	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	// stdout carries command output, so logs go to stderr.
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentClient,
		Output:    os.Stderr,
	})

	ctx, stop := cli.ShutdownContext(context.Background())
	code := run(ctx, os.Args[1:], cfg.APIURL, logger, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
