package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/library"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScanCapability reports whether barcode decoding is built in and enabled.
type ScanCapability interface {
	Available() bool
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Library *library.Service
	Store   Pinger
	Scanner ScanCapability
	Logger  *zap.Logger

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthController *auth.AuthController
	CSRFSecret     []byte
	SecureCookies  bool

	// UI paths. An empty TemplatesPath answers every page as JSON.
	TemplatesPath string
	StaticPath    string

	// Application info
	Version string
}
