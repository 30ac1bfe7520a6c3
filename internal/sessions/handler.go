package sessions

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kiko-poker/backend/internal/models"
	"github.com/kiko-poker/backend/pkg/response"
)

// CreateRequest is the body for POST /api/v1/sessions.
type CreateRequest struct {
	Name            string `json:"name" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// ScaleResponse lists the cards a participant may play.
type ScaleResponse struct {
	Cards      models.Scale `json:"cards"`
	NoEstimate models.Vote  `json:"no_estimate"`
}

// Handler serves the request/response side of sessions.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Create handles POST /api/v1/sessions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	maxSeconds := int64(h.store.MaxDuration() / time.Second)
	if req.DurationSeconds <= 0 || req.DurationSeconds > maxSeconds {
		response.Error(c, fmt.Errorf("duration_seconds must be between 1 and %d: %w", maxSeconds, models.ErrInvalidArgument))
		return
	}
	sess, err := h.store.Create(req.Name, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, models.NewSessionView(sess, h.store.Now()))
}

// Get handles GET /api/v1/sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	sess, err := h.store.Snapshot(models.SessionID(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, models.NewSessionView(sess, h.store.Now()))
}

// Close handles DELETE /api/v1/sessions/:id. The session stays readable until it is purged.
func (h *Handler) Close(c *gin.Context) {
	id := models.SessionID(c.Param("id"))
	sess, err := h.store.Close(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("session closed", zap.String("session_id", id.String()))
	response.OK(c, models.NewSessionView(sess, h.store.Now()))
}

// Scale handles GET /api/v1/scale.
func (h *Handler) Scale(c *gin.Context) {
	response.OK(c, ScaleResponse{Cards: h.store.Scale(), NoEstimate: models.NoEstimate})
}
