package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/Luis3c4/IMEI/api/responses"
	"github.com/Luis3c4/IMEI/pkg/config"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
)

const readinessTimeout = 5 * time.Second

type dependencyPinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one dependency probed by the readiness endpoint. A nil
// Pinger marks a dependency this deployment runs without.
type ReadinessCheck struct {
	Name   string
	Pinger dependencyPinger
}

func Check(name string, pinger dependencyPinger) ReadinessCheck {
	return ReadinessCheck{Name: name, Pinger: pinger}
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-IMEI-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-IMEI-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var failures error
		statuses := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				statuses[check.Name] = "skipped"
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				statuses[check.Name] = "down"
				failures = multierr.Append(failures, fmt.Errorf("%s: %w", check.Name, err))
				continue
			}
			statuses[check.Name] = "ok"
		}

		if failures != nil {
			err := pkgerrors.Wrap(pkgerrors.CodeDependency, failures, "dependencies not ready").
				WithDetails(statuses)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": statuses})
	}
}
