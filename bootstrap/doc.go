// Package bootstrap assembles and runs the fleetkit service.
//
// It wires the event bus, resilient client, health aggregator, and HTTP
// operator surface from a single configuration, and manages the process
// lifecycle: signal handling, graceful drain, stop hooks, and
// observability provider teardown.
//
//	cfg, err := config.Load()
//	app, err := bootstrap.New(cfg)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
