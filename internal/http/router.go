package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/logging"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(logging.GinMiddleware(log))
	router.Use(gin.Recovery())
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// Sessions load first so CSRF's request replacement keeps the session context.
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.LoadAndSave(log))
	}
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}
	if cfg.AuthService != nil {
		router.Use(auth.NewMiddleware(cfg.AuthService, cfg.SessionManager, log).Handler())
	}

	p := &pages{
		enabled:  loadTemplates(router, cfg.TemplatesPath, log),
		sessions: cfg.SessionManager,
	}
	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	health := NewHealthController(cfg.Store, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router)
	}

	books := NewBooksController(cfg.Library, p, log)
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/books") })
	router.GET("/books", books.BooksPage)
	router.GET("/books/add", books.AddBookPage)
	router.POST("/books/add", books.AddBook)
	router.GET("/books/:id/edit", books.EditBookPage)
	router.POST("/books/:id/edit", books.EditBook)
	router.POST("/books/:id/manual-update", books.ManualUpdate)
	router.POST("/books/:id/delete", books.DeleteBook)

	scan := NewScanController(cfg.Library, cfg.Scanner, p, log)
	router.GET("/scan", scan.ScanPage)
	router.POST("/scan_isbn", scan.ScanISBN)

	api := NewBooksAPIController(cfg.Library, log)
	apiGroup := router.Group("/api")
	apiGroup.GET("/books", api.ListBooks)
	apiGroup.POST("/books", api.CreateBook)
	apiGroup.GET("/books/:id", api.GetBook)
	apiGroup.PATCH("/books/:id", api.UpdateBook)
	apiGroup.DELETE("/books/:id", api.DeleteBook)

	return router
}
