package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pocket-guard/internal/domain"
)

// BuddyRelay es la parte del relay que usan los endpoints.
type BuddyRelay interface {
	SendMessage(ctx context.Context, sessionID, message string) (string, error)
	History(ctx context.Context, sessionID string) ([]domain.ChatTurn, error)
	Reset(ctx context.Context, sessionID string) error
	ModelStatus() (bool, string)
}

// BuddyHandler expone el chat de Buddy.
type BuddyHandler struct {
	logger *zap.Logger
	buddy  BuddyRelay
}

func NewBuddyHandler(logger *zap.Logger, buddy BuddyRelay) *BuddyHandler {
	return &BuddyHandler{logger: logger, buddy: buddy}
}

type historyItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// GetHistory maneja GET /api/buddy/history.
func (h *BuddyHandler) GetHistory(c *gin.Context) {
	sessionID, ok := sessionFromContext(c)
	if !ok {
		return
	}
	turns, err := h.buddy.History(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("buddy history failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history unavailable"})
		return
	}

	items := make([]historyItem, 0, len(turns))
	for _, t := range turns {
		items = append(items, historyItem{Role: string(t.Role), Text: t.Text})
	}
	c.JSON(http.StatusOK, gin.H{"history": items})
}

// PostMessage maneja POST /api/buddy.
func (h *BuddyHandler) PostMessage(c *gin.Context) {
	sessionID, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid buddy message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "message required"})
		return
	}

	reply, err := h.buddy.SendMessage(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Warn("buddy message failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "buddy unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// Reset maneja POST /api/buddy/reset.
func (h *BuddyHandler) Reset(c *gin.Context) {
	sessionID, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.buddy.Reset(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("buddy reset failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reset unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status maneja GET /api/buddy/status.
func (h *BuddyHandler) Status(c *gin.Context) {
	active, provider := h.buddy.ModelStatus()
	c.JSON(http.StatusOK, gin.H{"model_active": active, "provider": provider})
}

func sessionFromContext(c *gin.Context) (string, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.SessionID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return "", false
	}
	return claims.SessionID, true
}
