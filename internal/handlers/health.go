package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil, in which case
// only process liveness is reported.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck responds with 200 when the service and its database are reachable.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			logrus.WithError(err).Warn("Health check: database unreachable")
			utils.SendErrorResponse(c, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	utils.SendSuccessResponse(c, http.StatusOK, "Service is healthy", nil)
}
