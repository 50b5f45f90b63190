package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/httpserver/handlers"
)

func init() { Register(registerCache, adminOnly, tokenOnly) }

func registerCache(r chi.Router, d deps.Deps) {
	r.Delete("/subscription/cache", handlers.InvalidateCache(d))
}
