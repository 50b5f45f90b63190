package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/scheduler"
)

type reloadResponse struct {
	Triggered []string `json:"triggered"`
	Pending   []string `json:"pending"`
}

// Reload queues a manual run of ?job=<name>, or of every job when the
// parameter is empty. 202 when at least one run was queued, 429 when every
// requested job was already running or had one waiting.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := d.Jobs.Jobs()
		if job := strings.TrimSpace(r.URL.Query().Get("job")); job != "" {
			names = []string{job}
		}

		resp := reloadResponse{Triggered: []string{}, Pending: []string{}}
		for _, name := range names {
			err := d.Jobs.Trigger(name)
			switch {
			case err == nil:
				resp.Triggered = append(resp.Triggered, name)
				d.Logger.Info("manual run triggered via endpoint",
					logger.String("job", name),
					logger.String("remote_ip", r.RemoteAddr))
			case errors.Is(err, scheduler.ErrTriggerPending), errors.Is(err, scheduler.ErrAlreadyRunning):
				resp.Pending = append(resp.Pending, name)
				d.Logger.Warn("manual run already queued",
					logger.String("job", name),
					logger.String("remote_ip", r.RemoteAddr))
			case errors.Is(err, scheduler.ErrUnknownJob):
				http.Error(w, "unknown job: "+name, http.StatusNotFound)
				return
			default:
				d.Logger.Error("failed to trigger job", logger.String("job", name), logger.Error(err))
				http.Error(w, "failed to trigger job", http.StatusInternalServerError)
				return
			}
		}

		status := http.StatusAccepted
		if len(resp.Triggered) == 0 {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, resp)
	}
}
