package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/dispatch"
	"github.com/mrlokans/booktracker/internal/library"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "correct-horse-battery"

type stubScanner struct {
	available bool
	isbn      string
	err       error
}

func (s stubScanner) Available() bool                { return s.available }
func (s stubScanner) ScanISBN(string) (string, error) { return s.isbn, s.err }

type testApp struct {
	router *gin.Engine
	db     *database.Database
	auth   *auth.Service
}

type testOptions struct {
	scanner       *stubScanner
	templatesPath string
}

func newTestApp(t *testing.T, opts testOptions) *testApp {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "http.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authCfg := config.Auth{
		SessionLifetime:    time.Hour,
		BcryptCost:         bcrypt.MinCost,
		LoginRatePerMinute: 600,
		LoginBurst:         100,
	}
	authService := auth.NewService(db, authCfg, zap.NewNop())
	sessions, err := auth.NewSessionManager(nil, authCfg)
	require.NoError(t, err)
	authController := auth.NewAuthController(authService, sessions, "", authCfg, zap.NewNop())
	t.Cleanup(authController.Stop)

	scanner := stubScanner{}
	if opts.scanner != nil {
		scanner = *opts.scanner
	}

	router := NewRouter(RouterConfig{
		Library:        library.NewService(db, dispatch.Noop{}, scanner, zap.NewNop()),
		Store:          db,
		Scanner:        scanner,
		Logger:         zap.NewNop(),
		AuthService:    authService,
		SessionManager: sessions,
		AuthController: authController,
		TemplatesPath:  opts.templatesPath,
		Version:        "test",
	})
	return &testApp{router: router, db: db, auth: authService}
}

// client is a logged-in browser or API caller.
type client struct {
	app    *testApp
	userID string
	cookie *http.Cookie
}

func (a *testApp) login(t *testing.T, username string) *client {
	t.Helper()
	user, err := a.auth.Register(context.Background(), auth.RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)

	c := &client{app: a, userID: user.ID}
	rr := c.form(t, http.MethodPost, "/login", url.Values{"email": {user.Email}, "password": {testPassword}})
	require.Equal(t, http.StatusFound, rr.Code)
	require.NotNil(t, c.cookie)
	return c
}

func (c *client) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.app.router.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == "session" {
			c.cookie = ck
		}
	}
	return rr
}

func formRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (c *client) form(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return c.do(t, formRequest(method, path, form))
}

func (c *client) json(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(t, req)
}

func (c *client) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return c.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRouter_RootRedirectsToBooks(t *testing.T) {
	app := newTestApp(t, testOptions{})
	c := app.login(t, "alice")

	rr := c.get(t, "/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/books", rr.Header().Get("Location"))
}

func TestRouter_GuardsLibraryRoutes(t *testing.T) {
	app := newTestApp(t, testOptions{})
	anon := &client{app: app}

	rr := anon.get(t, "/books")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Fbooks", rr.Header().Get("Location"))

	rr = anon.get(t, "/api/books")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = anon.get(t, "/ping")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RequestID(t *testing.T) {
	app := newTestApp(t, testOptions{})
	anon := &client{app: app}

	rr := anon.get(t, "/ping")
	generated := rr.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "0f8fad5b-d9cb-469f-a165-70867728950e")
	rr = anon.do(t, req)
	assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rr = anon.do(t, req)
	assert.NotEqual(t, "<script>", rr.Header().Get(RequestIDHeader))
}
