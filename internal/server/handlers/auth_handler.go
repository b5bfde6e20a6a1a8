package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/server/session"
	"github.com/mvbarros/estoque/internal/service/catalog"
)

const sessionContextKey = "session"

// AuthHandler manages PIN login and the session cookie.
type AuthHandler struct {
	catalog    *catalog.Service
	sessions   *session.Manager
	cookieName string
	cookieTTL  time.Duration
	logger     *zap.Logger
}

// NewAuthHandler constructs the authentication handler.
func NewAuthHandler(catalogSvc *catalog.Service, sessions *session.Manager, cookieName string, cookieTTL time.Duration, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		catalog:    catalogSvc,
		sessions:   sessions,
		cookieName: cookieName,
		cookieTTL:  cookieTTL,
		logger:     logger,
	}
}

type loginRequest struct {
	UserID string `json:"user_id" binding:"required"`
	PIN    string `json:"pin" binding:"required"`
}

// Login verifies the PIN and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and pin are required"})
		return
	}

	user, err := h.catalog.Authenticate(c.Request.Context(), req.UserID, req.PIN)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidPIN), errors.Is(err, catalog.ErrUserNotFound), errors.Is(err, catalog.ErrInactive):
			h.logger.Warn("login rejected", zap.String("user_id", req.UserID))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "backing store unavailable"})
		}
		return
	}

	sess := h.sessions.Create(user)
	c.SetCookie(h.cookieName, sess.Token, int(h.cookieTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "name": user.Name})
}

// Logout drops the session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookieName); err == nil {
		h.sessions.Delete(token)
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// RequireSession resolves the cookie to a live session and injects it into
// the request context; requests without one are rejected.
func (h *AuthHandler) RequireSession(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}

	sess, ok := h.sessions.Get(token)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	c.Set(sessionContextKey, sess)
	c.Next()
}

func currentSession(c *gin.Context) (session.Session, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := value.(session.Session)
	return sess, ok
}
