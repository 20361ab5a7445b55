package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/fleetkit/bootstrap"
	"github.com/kbukum/fleetkit/config"
	"github.com/kbukum/fleetkit/version"
)

func main() {
	var (
		otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP HTTP endpoint for traces and metrics (empty disables)")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return
	}

	if err := run(context.Background(), *otlpEndpoint); err != nil {
		fmt.Fprintln(os.Stderr, "fleetkit:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, otlpEndpoint string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		return err
	}

	if otlpEndpoint != "" {
		if err := app.EnableObservability(ctx, otlpEndpoint); err != nil {
			return err
		}
	}

	return app.Run(ctx)
}
