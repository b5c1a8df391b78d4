package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/response"
)

type HealthController struct {
	probe func(ctx context.Context) error
}

// NewHealthController reports healthy while probe succeeds. A nil probe
// always reports healthy.
func NewHealthController(probe func(ctx context.Context) error) *HealthController {
	return &HealthController{probe: probe}
}

func (c *HealthController) Show(w http.ResponseWriter, r *http.Request) {
	if c.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.probe(ctx); err != nil {
			logger.WithCtx(r.Context()).Warn("health: probe failed", "error", err)
			response.WithMessage(w, http.StatusServiceUnavailable, "Database unavailable", map[string]string{"database": "down"})
			return
		}
	}
	response.Success(w, map[string]string{"database": "up"})
}
