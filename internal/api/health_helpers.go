package api

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds each component check so a hung dependency
// reports as degraded instead of stalling /healthz.
const healthCheckTimeout = 2 * time.Second

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components []componentStatus `json:"components"`
}

func (h *Handler) checks() []HealthCheck {
	checks := make([]HealthCheck, 0, 1+len(h.HealthChecks))
	if h.Repos != nil {
		checks = append(checks, HealthCheck{Component: "datastore", Ping: h.Repos.Ping})
	}
	for _, check := range h.HealthChecks {
		if check.Ping != nil {
			checks = append(checks, check)
		}
	}
	return checks
}

// Health checks the datastore and every registered component in parallel.
// Any failing check turns the answer into 503 "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := h.checks()
	components := make([]componentStatus, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			start := time.Now()
			err := check.Ping(ctx)
			components[i] = componentStatus{
				Component: check.Component,
				Status:    "ok",
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				components[i].Status = "degraded"
				components[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{Status: "ok", Components: components}
	code := http.StatusOK
	for _, component := range components {
		if component.Status != "ok" {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			h.logger(r).Warn("health check failed", "component", component.Component, "error", component.Error)
		}
	}
	writeJSON(w, code, resp)
}
