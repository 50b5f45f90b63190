package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/httpserver/handlers"
)

func init() { Register(registerSubscription, tokenOnly) }

func registerSubscription(r chi.Router, d deps.Deps) {
	r.Get("/subscription/clash", handlers.Subscription(d))
}
