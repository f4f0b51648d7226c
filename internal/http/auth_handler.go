package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pocket-guard/internal/service"
)

const (
	demoUserID    = "demo-user"
	demoUserEmail = "demo@pocketguard.test"
)

// SessionEnder destruye los datos ligados a una sesion cerrada.
type SessionEnder interface {
	EndSession(ctx context.Context, sessionID string) error
}

// AuthHandler cubre el ciclo de vida de la sesion que le toca a este servicio.
type AuthHandler struct {
	logger      *zap.Logger
	jwt         *service.JWTService
	sessions    SessionEnder
	demoEnabled bool
}

func NewAuthHandler(logger *zap.Logger, jwtSvc *service.JWTService, sessions SessionEnder, demoEnabled bool) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		jwt:         jwtSvc,
		sessions:    sessions,
		demoEnabled: demoEnabled,
	}
}

// DemoSession maneja POST /auth/demo-session.
func (h *AuthHandler) DemoSession(c *gin.Context) {
	if !h.demoEnabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	token, err := h.jwt.IssueSession(demoUserID, demoUserEmail)
	if err != nil {
		h.logger.Error("issue demo session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	h.logger.Info("demo session issued", zap.String("session_id", token.SessionID))
	c.JSON(http.StatusCreated, token)
}

// Logout maneja POST /auth/logout: revoca la sesion y borra su historial.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}
	ctx := c.Request.Context()
	if err := h.jwt.RevokeSession(ctx, claims); err != nil {
		h.logger.Error("revoke session failed", zap.String("session_id", claims.SessionID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not end session"})
		return
	}
	if h.sessions != nil {
		if err := h.sessions.EndSession(ctx, claims.SessionID); err != nil {
			// El historial igual expira con la sesion.
			h.logger.Warn("clear history on logout failed", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
