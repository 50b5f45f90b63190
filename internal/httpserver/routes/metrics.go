package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/httpserver/handlers"
)

func init() { Register(registerMetrics, adminOnly) }

func registerMetrics(r chi.Router, d deps.Deps) {
	r.Method("GET", "/metrics", handlers.Metrics(d))
}
