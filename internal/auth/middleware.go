package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/store"
)

// Context keys for user data
const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
)

// Middleware resolves the session user and guards non-public routes.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	publicPaths    map[string]bool
	log            *zap.Logger
}

func NewMiddleware(service *Service, sessionManager *SessionManager, log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		publicPaths: map[string]bool{
			"/health":      true,
			"/ping":        true,
			"/login":       true,
			"/register":    true,
			"/favicon.ico": true,
		},
		log: log.Named("auth"),
	}
}

// Handler loads the session user into the context. Anonymous requests to
// protected paths get 401 (API) or a redirect to the login page (web).
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := m.sessionUser(c); user != nil {
			c.Set(ContextKeyUserID, user.ID)
			c.Set(ContextKeyUsername, user.Username)
			c.Next()
			return
		}

		if m.isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		if wantsJSON(c.Request) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

func (m *Middleware) sessionUser(c *gin.Context) *entities.User {
	if m.sessionManager == nil {
		return nil
	}
	userID := m.sessionManager.GetUserID(c.Request)
	if userID == "" {
		return nil
	}

	user, err := m.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Error("session user lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return user
}

func (m *Middleware) isPublicPath(path string) bool {
	return m.publicPaths[path] || strings.HasPrefix(path, "/static/")
}

// GetUserID returns the authenticated user's ID, or "" for anonymous requests.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != ""
}
