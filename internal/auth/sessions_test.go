package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sessionRouter(sm *SessionManager) *gin.Engine {
	router := gin.New()
	router.Use(sm.LoadAndSave(zap.NewNop()))
	router.POST("/flash", func(c *gin.Context) {
		sm.AddFlash(c.Request, FlashSuccess, "first")
		sm.AddFlash(c.Request, FlashDanger, "second")
		c.Status(http.StatusNoContent)
	})
	router.GET("/flashes", func(c *gin.Context) {
		c.JSON(http.StatusOK, sm.PopFlashes(c.Request))
	})
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": sm.GetUserID(c.Request), "username": sm.GetUsername(c.Request)})
	})
	return router
}

func TestSessionManager_Stores(t *testing.T) {
	db := newTestDatabase(t)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	for name, build := range map[string]func() (*SessionManager, error){
		"sqlite": func() (*SessionManager, error) { return NewSessionManager(sqlDB, testAuthConfig()) },
		"memory": func() (*SessionManager, error) { return NewSessionManager(nil, testAuthConfig()) },
	} {
		t.Run(name, func(t *testing.T) {
			sm, err := build()
			require.NoError(t, err)

			assert.Equal(t, "session", sm.Cookie.Name)
			assert.True(t, sm.Cookie.HttpOnly)
			assert.False(t, sm.Cookie.Secure)
			assert.Equal(t, http.SameSiteLaxMode, sm.Cookie.SameSite)

			router := sessionRouter(sm)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/flash", nil))
			require.Equal(t, http.StatusNoContent, rr.Code)
			cookie := sessionCookie(t, rr.Result())
			require.NotNil(t, cookie)

			req := httptest.NewRequest(http.MethodGet, "/flashes", nil)
			req.AddCookie(cookie)
			rr = httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.JSONEq(t, `[{"Category":"success","Message":"first"},{"Category":"danger","Message":"second"}]`, rr.Body.String())

			// Popped flashes are gone.
			req = httptest.NewRequest(http.MethodGet, "/flashes", nil)
			req.AddCookie(cookie)
			rr = httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.JSONEq(t, `null`, rr.Body.String())
		})
	}
}

func TestSessionManager_CreateAndDestroy(t *testing.T) {
	svc, _ := newTestService(t)
	user := registerUser(t, svc, "reader", "reader@example.com")

	sm, err := NewSessionManager(nil, testAuthConfig())
	require.NoError(t, err)

	router := sessionRouter(sm)
	router.POST("/login", func(c *gin.Context) {
		require.NoError(t, sm.CreateSession(c.Request, user))
		c.Status(http.StatusNoContent)
	})
	router.POST("/logout", func(c *gin.Context) {
		require.NoError(t, sm.DestroySession(c.Request))
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookie := sessionCookie(t, rr.Result())
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.JSONEq(t, `{"user_id":"`+user.ID+`","username":"reader"}`, rr.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	expired := sessionCookie(t, rr.Result())
	require.NotNil(t, expired)
	assert.Empty(t, expired.Value)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.JSONEq(t, `{"user_id":"","username":""}`, rr.Body.String())
}
