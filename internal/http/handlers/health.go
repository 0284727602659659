package handlers

import (
	"net/http"

	"github.com/go-chi/render"
)

// HealthHandler serves GET /health
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]bool{"ok": true})
}
