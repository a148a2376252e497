package handler

import (
	"net/http"

	"github.com/replyforge/replyforge/internal/api/response"
	"github.com/replyforge/replyforge/internal/cache"
	"github.com/replyforge/replyforge/internal/store"
)

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health. It
// reports degraded (503) if either backing service fails its ping.
func NewHealthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "up"
		if err := s.Ping(r.Context()); err != nil {
			dbStatus = "down"
		}
		cacheStatus := "up"
		if err := c.Ping(r.Context()); err != nil {
			cacheStatus = "down"
		}

		body := map[string]string{
			"status":   "ok",
			"database": dbStatus,
			"cache":    cacheStatus,
		}
		if dbStatus != "up" || cacheStatus != "up" {
			body["status"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
				"One or more backing services are unavailable", body)
			return
		}
		response.JSON(w, body)
	}
}
