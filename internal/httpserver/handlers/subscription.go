package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/logger"
	redisstore "github.com/MrSnakeDoc/esched/internal/store/redis"
	"github.com/MrSnakeDoc/esched/internal/subscription"
)

// Subscription serves the merged clash config from the cache, replaying the
// upstream user info header when one was cached with it.
func Subscription(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, err := d.Cache.ClashConfig(ctx)
		if errors.Is(err, redisstore.ErrNotFound) {
			http.Error(w, "no config cached yet", http.StatusNotFound)
			return
		}
		if err != nil {
			d.Logger.Error("failed to read cached clash config", logger.Error(err))
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}

		info, err := d.Cache.UserInfo(ctx)
		switch {
		case err == nil && info != "":
			w.Header().Set(subscription.HeaderUserInfo, info)
		case err != nil && !errors.Is(err, redisstore.ErrNotFound):
			d.Logger.Warn("failed to read cached user info", logger.Error(err))
		}

		w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="clash.yaml"`)
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write(data); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}

// InvalidateCache drops every cached subscription artifact. The next
// subscription run repopulates them.
func InvalidateCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Cache.Invalidate(r.Context()); err != nil {
			d.Logger.Error("failed to invalidate cache", logger.Error(err))
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
		d.Logger.Info("subscription cache invalidated via endpoint", logger.String("remote_ip", r.RemoteAddr))
		w.WriteHeader(http.StatusNoContent)
	}
}
