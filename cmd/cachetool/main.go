// Package main provides cache maintenance utilities.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/bookclub/internal/platform/config"
	"github.com/louisbranch/bookclub/internal/platform/otel"
	"github.com/louisbranch/bookclub/internal/tools/cachetool"
)

func main() {
	cfg, err := cachetool.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "bookclub-cachetool")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := cachetool.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
