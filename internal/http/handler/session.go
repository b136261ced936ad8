package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/cardlink/internal/http/middleware"
	"github.com/smallbiznis/cardlink/internal/session"
)

// SessionHandler rotates session token pairs.
type SessionHandler struct {
	Sessions     *session.Manager
	secureCookie bool
	logger       *zap.Logger
}

// NewSessionHandler creates the handler. secureCookie marks the session cookie Secure.
func NewSessionHandler(sessions *session.Manager, secureCookie bool, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{Sessions: sessions, secureCookie: secureCookie, logger: logger.Named("handler")}
}

// Refresh exchanges a refresh token for a brand-new pair.
func (h *SessionHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		writeAPIError(c, newAPIError("invalid_request", "refreshToken is required.", http.StatusBadRequest))
		return
	}

	pair, err := h.Sessions.Refresh(strings.TrimSpace(req.RefreshToken))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		MaxAge:   int(time.Until(pair.AccessExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, pair)
}
