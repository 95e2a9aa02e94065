package auth

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "correct-horse-battery"

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:    time.Hour,
		BcryptCost:         bcrypt.MinCost,
		SecureCookies:      false,
		LoginRatePerMinute: 600,
		LoginBurst:         100,
	}
}

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "auth.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T) (*Service, *database.Database) {
	t.Helper()
	db := newTestDatabase(t)
	return NewService(db, testAuthConfig(), zap.NewNop()), db
}

func registerUser(t *testing.T, svc *Service, username, email string) *entities.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Username:        username,
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return user
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}
