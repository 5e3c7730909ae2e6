// Package handlers exposes the discussion session API over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/discussion"
)

// DiscussionHandler serves the session API consumed by front ends.
type DiscussionHandler struct {
	manager *discussion.Manager
	log     *logrus.Logger
}

// NewDiscussionHandler creates the handler.
func NewDiscussionHandler(manager *discussion.Manager, log *logrus.Logger) *DiscussionHandler {
	if log == nil {
		log = logrus.New()
	}
	return &DiscussionHandler{manager: manager, log: log}
}

// StartRequest is the payload for starting a discussion.
type StartRequest struct {
	Topic     string `json:"topic" binding:"required"`
	SessionID string `json:"session_id"`
}

// Start opens a new discussion session.
// POST /v1/discussions
func (h *DiscussionHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	session := h.manager.StartDiscussion(c.Request.Context(), req.Topic, req.SessionID)
	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID(),
		"topic":      session.Topic(),
		"created_at": session.CreatedAt(),
	})
}

// MessageRequest is the payload for a human contribution.
type MessageRequest struct {
	Speaker string `json:"speaker" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// AddMessage appends a human message to the active session.
// POST /v1/discussions/messages
func (h *DiscussionHandler) AddMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	msg, err := h.manager.AddHumanMessage(req.Speaker, req.Content)
	if err != nil {
		h.writeStateError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// RespondRequest selects which agents speak. Empty roles means "next
// scheduled speakers".
type RespondRequest struct {
	Roles []string `json:"roles"`
}

// GenerateResponses asks the scheduled (or named) agents to contribute.
// POST /v1/discussions/responses
func (h *DiscussionHandler) GenerateResponses(c *gin.Context) {
	var req RespondRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
			return
		}
	}
	if h.manager.Session() == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_active_session", "message": "start a discussion first"})
		return
	}
	messages := h.manager.GenerateAgentResponses(c.Request.Context(), req.Roles)
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// NextSpeakers previews which roles would speak next.
// GET /v1/discussions/next-speakers
func (h *DiscussionHandler) NextSpeakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": h.manager.NextSpeakers(0)})
}

// AdvanceRound moves the session to its next round.
// POST /v1/discussions/advance
func (h *DiscussionHandler) AdvanceRound(c *gin.Context) {
	round, err := h.manager.AdvanceRound()
	if err != nil {
		h.writeStateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"round":           round,
		"should_continue": h.manager.ShouldContinue(),
	})
}

// Status returns the session snapshot.
// GET /v1/discussions/status
func (h *DiscussionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.SessionStatus())
}

// End closes the session and returns its summary. Repeated calls return
// the same summary.
// POST /v1/discussions/end
func (h *DiscussionHandler) End(c *gin.Context) {
	summary, err := h.manager.EndDiscussion()
	if err != nil {
		h.writeStateError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Usage returns the API usage report.
// GET /v1/usage
func (h *DiscussionHandler) Usage(c *gin.Context) {
	usage, costs, availability := h.manager.UsageReport()
	c.JSON(http.StatusOK, gin.H{
		"usage_summary":   usage,
		"cost_estimate":   costs,
		"provider_status": availability,
	})
}

// Health is a liveness probe.
// GET /health
func (h *DiscussionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *DiscussionHandler) writeStateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, discussion.ErrNoActiveSession):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_active_session", "message": err.Error()})
	case errors.Is(err, discussion.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "session_ended", "message": err.Error()})
	default:
		h.log.WithError(err).Error("discussion operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
