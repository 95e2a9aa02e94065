package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCSRFSecret = []byte("test-secret-key-32-bytes-long!!!")

func csrfRouter() *gin.Engine {
	router := gin.New()
	router.Use(CSRFMiddleware(testCSRFSecret, false))
	router.GET("/books/add", func(c *gin.Context) {
		c.String(http.StatusOK, GetCSRFToken(c))
	})
	router.POST("/books/add", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	router.POST("/api/books", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestCSRFMiddleware_SafeMethodIssuesToken(t *testing.T) {
	rr := httptest.NewRecorder()
	csrfRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/books/add", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
	assert.NotEmpty(t, rr.Result().Cookies())
}

func TestCSRFMiddleware_RejectsMissingToken(t *testing.T) {
	router := csrfRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/books", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"CSRF token invalid or missing"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/books/add", strings.NewReader("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "http://books.local/books/add?from=list")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/books/add?from=list", rr.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/books/add", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Session Expired")
}

func TestCSRFMiddleware_AcceptsValidToken(t *testing.T) {
	router := csrfRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/books/add", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	token := rr.Body.String()
	cookies := rr.Result().Cookies()

	req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
	req.Header.Set(CSRFTokenHeader, token)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	form := strings.NewReader(CSRFFormField + "=" + url.QueryEscape(token))
	req = httptest.NewRequest(http.MethodPost, "/books/add", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestRefererPath(t *testing.T) {
	assert.Equal(t, "/books/add", refererPath("https://books.local/books/add"))
	assert.Equal(t, "/", refererPath("https://books.local"))
	assert.Equal(t, "/books", refererPath("/books"))
}
