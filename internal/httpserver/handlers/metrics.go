package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
)

// Metrics exposes the prometheus registry.
func Metrics(d deps.Deps) http.Handler {
	if d.Metrics != nil {
		return d.Metrics
	}
	return promhttp.Handler()
}
