package auth

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/validation"
)

// Messages shown to the user after auth actions.
const (
	MsgLoginSuccess     = "Login successful."
	MsgLoginFailed      = "Login Unsuccessful. Please check email and password"
	MsgLoggedOut        = "You have been logged out."
	MsgRegistered       = "Your account has been created! You are now able to log in"
	MsgPasswordMismatch = "Passwords do not match!"
	MsgUserExists       = "Username or Email already exists. Please choose a different one."
)

// DefaultLandingPath is where logins and guarded pages lead by default.
const DefaultLandingPath = "/books"

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	// Reject protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}
	// Browsers drop tabs and newlines, so "/\t/evil.com" would become "//evil.com".
	if strings.IndexFunc(path, unicode.IsControl) >= 0 {
		return false
	}
	return !strings.Contains(path, "://") && !strings.Contains(path, "\\")
}

// sanitizeRedirectPath returns path when it is local, DefaultLandingPath otherwise.
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return DefaultLandingPath
}

type loginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

// AuthController serves the register, login and logout pages.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
	rateLimiter    *RateLimiter
	log            *zap.Logger
}

// NewAuthController parses templatesPath/auth/*.html. Without templates,
// pages are answered with their data as JSON.
func NewAuthController(service *Service, sessionManager *SessionManager, templatesPath string, cfg config.Auth, log *zap.Logger) *AuthController {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("auth")

	var tmpl *template.Template
	if templatesPath != "" {
		parsed, err := template.ParseGlob(filepath.Join(templatesPath, "auth", "*.html"))
		if err != nil {
			log.Warn("auth templates unavailable, answering with JSON", zap.Error(err))
		} else {
			tmpl = parsed
		}
	}

	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		templates:      tmpl,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			PerMinute: cfg.LoginRatePerMinute,
			Burst:     cfg.LoginBurst,
		}),
		log: log,
	}
}

func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	limit := ac.rateLimiter.Middleware()

	router.GET("/login", ac.LoginPage)
	router.POST("/login", limit, ac.Login)
	router.GET("/register", ac.RegisterPage)
	router.POST("/register", limit, ac.Register)
	router.POST("/logout", ac.Logout)
	router.GET("/logout", ac.Logout)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

func (ac *AuthController) LoginPage(c *gin.Context) {
	if ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, DefaultLandingPath)
		return
	}

	ac.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Login",
		"Next":  sanitizeRedirectPath(c.Query("next")),
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)
	next := sanitizeRedirectPath(form.Next)

	user, err := ac.service.Authenticate(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			ac.log.Error("login failed", zap.Error(err))
		}
		ac.render(c, http.StatusUnauthorized, "login.html", gin.H{
			"Title": "Login",
			"Next":  next,
			"Email": form.Email,
			"Error": MsgLoginFailed,
		})
		return
	}

	if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
		ac.log.Error("session create failed", zap.String("user_id", user.ID), zap.Error(err))
		ac.render(c, http.StatusInternalServerError, "login.html", gin.H{
			"Title": "Login",
			"Next":  next,
			"Email": form.Email,
			"Error": "Failed to create session",
		})
		return
	}
	ac.rateLimiter.Reset(requestKey(c))

	if wantsJSON(c.Request) {
		c.JSON(http.StatusOK, gin.H{"user": user, "next": next})
		return
	}
	ac.sessionManager.AddFlash(c.Request, FlashSuccess, MsgLoginSuccess)
	c.Redirect(http.StatusFound, next)
}

func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.sessionManager.DestroySession(c.Request); err != nil {
		ac.log.Error("session destroy failed", zap.Error(err))
	}
	if wantsJSON(c.Request) {
		c.JSON(http.StatusOK, gin.H{"message": MsgLoggedOut})
		return
	}
	ac.sessionManager.AddFlash(c.Request, FlashInfo, MsgLoggedOut)
	c.Redirect(http.StatusFound, "/login")
}

func (ac *AuthController) RegisterPage(c *gin.Context) {
	if ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, DefaultLandingPath)
		return
	}
	ac.render(c, http.StatusOK, "register.html", gin.H{"Title": "Register"})
}

func (ac *AuthController) Register(c *gin.Context) {
	var in RegisterInput
	_ = c.ShouldBind(&in)

	user, err := ac.service.Register(c.Request.Context(), in)
	if err != nil {
		status, message, fields := registerFailure(err)
		if status == http.StatusInternalServerError {
			ac.log.Error("registration failed", zap.Error(err))
		}
		ac.render(c, status, "register.html", gin.H{
			"Title":    "Register",
			"Username": in.Username,
			"Email":    in.Email,
			"Error":    message,
			"Fields":   fields,
		})
		return
	}

	if wantsJSON(c.Request) {
		c.JSON(http.StatusCreated, gin.H{"user": user, "message": MsgRegistered})
		return
	}
	ac.sessionManager.AddFlash(c.Request, FlashSuccess, MsgRegistered)
	c.Redirect(http.StatusFound, "/login")
}

func registerFailure(err error) (int, string, map[string]string) {
	var verr *validation.Error
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return http.StatusBadRequest, MsgPasswordMismatch, map[string]string{"confirm_password": "must match password"}
	case errors.Is(err, ErrUserExists):
		return http.StatusConflict, MsgUserExists, nil
	case errors.As(err, &verr):
		return http.StatusBadRequest, "Please correct the highlighted fields.", verr.Fields
	default:
		return http.StatusInternalServerError, "Failed to create account", nil
	}
}

// render executes an auth template with the CSRF token and pending
// flashes added, or answers with data as JSON.
func (ac *AuthController) render(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil || wantsJSON(c.Request) {
		if msg, ok := data["Error"].(string); ok && status >= http.StatusBadRequest {
			body := gin.H{"error": msg}
			if fields, ok := data["Fields"].(map[string]string); ok && len(fields) > 0 {
				body["details"] = fields
			}
			c.JSON(status, body)
			return
		}
		c.JSON(status, data)
		return
	}

	data["CSRFToken"] = GetCSRFToken(c)
	data["CSRFField"] = CSRFFormField
	data["Flashes"] = ac.sessionManager.PopFlashes(c.Request)

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		ac.log.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}
