package app

import (
	"context"
	"errors"
)

// Start brings up the background services: the health and metrics server
// when a port is configured.
func (a *App) Start(ctx context.Context) error {
	a.logger.Debug("App.Start method started.")
	if a.cfg.MetricsPort > 0 {
		if _, err := a.startHealthcheckServer(a.cfg.MetricsPort); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the background services.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.closeHealthcheckServer(ctx))
}
