package bootstrap

import (
	"github.com/kbukum/fleetkit/logger"
	"github.com/kbukum/fleetkit/version"
)

// logSummary logs what the application is about to serve: version,
// listen address, configured dependencies, and probe targets.
func (a *App) logSummary() {
	deps := a.Client.Dependencies()
	targets := make([]string, 0, len(a.Cfg.Health.Targets))
	for _, t := range a.Cfg.Health.Targets {
		targets = append(targets, t.Name)
	}

	a.Logger.Info("starting", logger.Fields(
		"version", version.GetShortVersion(),
		"environment", a.Cfg.Environment,
		"addr", a.Cfg.HTTP.Addr,
		"dependencies", deps,
		"health_targets", targets,
	))
}
