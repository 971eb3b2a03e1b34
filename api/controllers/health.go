package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josima5/venda-projetos-sub001/api/responses"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

const (
	readinessTimeout = 2 * time.Second
	envHeader        = "X-Venda-Env"
	checkOK          = "ok"
	checkDown        = "down"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type readinessReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, readinessReport{Status: "live"})
	}
}

// HealthReady pings the named dependencies in parallel and answers 503 when
// any of them fails. Nil pingers are not checked.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := readinessReport{Status: "ready", Checks: make(map[string]string, len(deps))}
		var mu sync.Mutex
		var g errgroup.Group
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			g.Go(func() error {
				err := dep.Ping(ctx)
				mu.Lock()
				defer mu.Unlock()
				report.Checks[name] = checkOK
				if err != nil {
					report.Checks[name] = checkDown
					if logg != nil {
						logg.Warn(logg.WithFields(r.Context(), map[string]any{"dependency": name, "error": err.Error()}), "readiness check failed")
					}
				}
				return err
			})
		}

		if err := g.Wait(); err != nil {
			report.Status = "unavailable"
			responses.WriteJSON(w, http.StatusServiceUnavailable, report)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
