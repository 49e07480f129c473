package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remedial_go/config"
	"remedial_go/database"
	"remedial_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAuth(t *testing.T) []models.User {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	users := []models.User{
		{Username: "admin", Role: models.RoleAdmin, Status: "active"},
		{Username: "teacher", Role: models.RoleTeacher, Status: "active"},
		{Username: "parent", Role: models.RoleParent, Status: "active"},
		{Username: "gone", Role: models.RoleTeacher, Status: "inactive"},
	}
	require.NoError(t, db.Create(&users).Error)

	prevDB, prevCfg := database.DB, config.AppConfig
	database.DB = db
	config.AppConfig = &config.Config{JWTSecret: "middleware-test-secret", JWTExpiresIn: time.Hour}
	t.Cleanup(func() {
		database.DB, config.AppConfig = prevDB, prevCfg
		_ = sqlDB.Close()
	})
	return users
}

func TestJWTMiddlewareAndRoles(t *testing.T) {
	users := setupAuth(t)

	app := fiber.New()
	api := app.Group("/api", JWTMiddleware())
	api.Get("/me", func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return err
		}
		return c.SendString(user.Username)
	})
	api.Get("/staff", RequireStaff(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	api.Get("/admin", RequireAdmin(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	api.Get("/parent", RequireParent(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	tokenFor := func(u models.User) string {
		tok, err := GenerateToken(&u)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: users[0].ID,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredTok, err := expired.SignedString([]byte("middleware-test-secret"))
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: users[0].ID, Role: models.RoleAdmin})
	forgedTok, err := forged.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/api/me", "", http.StatusUnauthorized},
		{"not bearer", "/api/me", "Token abc", http.StatusUnauthorized},
		{"garbage", "/api/me", "Bearer abc", http.StatusUnauthorized},
		{"expired", "/api/me", "Bearer " + expiredTok, http.StatusUnauthorized},
		{"wrong secret", "/api/me", "Bearer " + forgedTok, http.StatusUnauthorized},
		{"inactive user", "/api/me", tokenFor(users[3]), http.StatusUnauthorized},
		{"teacher me", "/api/me", tokenFor(users[1]), http.StatusOK},
		{"teacher staff", "/api/staff", tokenFor(users[1]), http.StatusNoContent},
		{"admin staff", "/api/staff", tokenFor(users[0]), http.StatusNoContent},
		{"parent staff", "/api/staff", tokenFor(users[2]), http.StatusForbidden},
		{"teacher admin", "/api/admin", tokenFor(users[1]), http.StatusForbidden},
		{"parent parent", "/api/parent", tokenFor(users[2]), http.StatusNoContent},
		{"admin parent", "/api/parent", tokenFor(users[0]), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	users := setupAuth(t)

	tok, err := GenerateToken(&users[2])
	require.NoError(t, err)
	claims, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, users[2].ID, claims.UserID)
	assert.Equal(t, models.RoleParent, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}
