package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/esched/internal/store/redis"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	ExpiresIn string `json:"expires_in,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
	Jobs       []scheduler.Status         `json:"jobs"`
}

// Infra reports Redis reachability, the cached config lifetime and the last
// outcome of every job. Any failing part makes the service "degraded".
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redisStatus := componentStatus{OK: true}
		if err := ping(r.Context(), d); err != nil {
			redisStatus = componentStatus{OK: false, Error: err.Error()}
		}

		components := map[string]componentStatus{
			"redis": redisStatus,
			"cache": cacheStatus(r.Context(), d),
		}
		jobs := d.Jobs.Status()
		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components, jobs),
			Components: components,
			Jobs:       jobs,
		})
	}
}

func cacheStatus(ctx context.Context, d deps.Deps) componentStatus {
	ttl, err := d.Cache.TTL(ctx, redisstore.KeyClashConfig)
	if errors.Is(err, redisstore.ErrNotFound) {
		return componentStatus{OK: false, Error: "no config cached"}
	}
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true, ExpiresIn: ttl.Round(time.Second).String()}
}

func overallStatus(components map[string]componentStatus, jobs []scheduler.Status) string {
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	for _, j := range jobs {
		if j.LastError != "" {
			return "degraded"
		}
	}
	return "ok"
}
