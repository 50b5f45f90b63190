package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/httpserver/handlers"
)

func init() { Register(registerInfra, adminOnly) }

func registerInfra(r chi.Router, d deps.Deps) {
	r.Get("/infra", handlers.Infra(d))
}
