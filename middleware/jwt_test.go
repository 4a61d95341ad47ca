package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"ledger/config"
	"ledger/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupJWT(t *testing.T) {
	InitJWT(&config.Config{JWT: config.JWTConfig{Secret: "test-secret"}})
	t.Cleanup(func() { jwtSecret = nil })
}

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	setupJWT(t)

	token, err := GenerateToken("u-1", "test@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "u-1", claims.Subject)
}

func TestParseToken_Expired(t *testing.T) {
	setupJWT(t)

	token, err := GenerateToken("u-1", "test@example.com", -time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_Tampered(t *testing.T) {
	setupJWT(t)

	token, err := GenerateToken("u-1", "test@example.com", time.Hour)
	require.NoError(t, err)

	// 篡改最后一个字符破坏签名
	tampered := token[:len(token)-1] + "x"
	if tampered == token {
		tampered = token[:len(token)-1] + "y"
	}
	_, err = ParseToken(tampered)
	assert.Error(t, err)
}

func TestParseToken_WrongSecret(t *testing.T) {
	setupJWT(t)
	token, err := GenerateToken("u-1", "test@example.com", time.Hour)
	require.NoError(t, err)

	InitJWT(&config.Config{JWT: config.JWTConfig{Secret: "another-secret"}})
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_Empty(t *testing.T) {
	setupJWT(t)
	_, err := ParseToken("")
	assert.Error(t, err)
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"userID": GetCurrentUserID(c)})
	})
	return router
}

func TestJWTAuth(t *testing.T) {
	setupJWT(t)
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	token, err := GenerateToken("u-1", "test@example.com", time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))

	router := newAuthRouter()
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "u-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJWTAuth_UserDeleted(t *testing.T) {
	setupJWT(t)
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	token, err := GenerateToken("u-gone", "gone@example.com", time.Hour)
	require.NoError(t, err)

	// token 有效但用户已被删除
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("u-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	router := newAuthRouter()
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJWTAuth_BadHeaders(t *testing.T) {
	setupJWT(t)
	router := newAuthRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"无认证头", ""},
		{"非Bearer", "Basic dXNlcjpwYXNz"},
		{"缺少token", "Bearer "},
		{"无效token", "Bearer not-a-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, 401, w.Code)
		})
	}
}

func TestGetCurrentUserID_Unset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetCurrentUserID(c))
}
