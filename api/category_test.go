package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categoryColumns() []string {
	return []string{"id", "user_id", "name", "monthly_limit", "color", "created_at", "updated_at"}
}

func TestClassifyBudgetStatus(t *testing.T) {
	limit := 100.0

	cases := []struct {
		name       string
		spent      float64
		limit      *float64
		percentage int
		status     string
	}{
		{"低于六成", 50, &limit, 50, BudgetStatusGreen},
		{"恰好六成", 60, &limit, 60, BudgetStatusYellow},
		{"六成到满额之间", 80, &limit, 80, BudgetStatusYellow},
		{"恰好满额", 100, &limit, 100, BudgetStatusYellow},
		{"超支", 150, &limit, 150, BudgetStatusRed},
		{"零支出", 0, &limit, 0, BudgetStatusGreen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			percentage, status := ClassifyBudgetStatus(tc.spent, tc.limit)
			require.NotNil(t, percentage)
			require.NotNil(t, status)
			assert.Equal(t, tc.percentage, *percentage)
			assert.Equal(t, tc.status, *status)
		})
	}

	t.Run("未设置上限", func(t *testing.T) {
		percentage, status := ClassifyBudgetStatus(999, nil)
		assert.Nil(t, percentage)
		assert.Nil(t, status)
	})

	t.Run("状态按原始比例判定", func(t *testing.T) {
		// 59.9% 展示为 60，但仍属 green
		percentage, status := ClassifyBudgetStatus(59.9, &limit)
		require.NotNil(t, percentage)
		assert.Equal(t, 60, *percentage)
		assert.Equal(t, BudgetStatusGreen, *status)

		// 100.4% 展示为 100，但已超支
		percentage, status = ClassifyBudgetStatus(100.4, &limit)
		assert.Equal(t, 100, *percentage)
		assert.Equal(t, BudgetStatusRed, *status)
	})
}

func TestCategoryHandler_Create(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("u-1", "旅行").
		WillReturnRows(sqlmock.NewRows(categoryColumns()))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `categories`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.POST("/categories", NewCategoryHandler().Create)

	body := `{"name":"旅行","monthlyLimit":1000}`
	req := httptest.NewRequest("POST", "/categories", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 201, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "旅行", data["name"])
	// 未指定颜色时使用默认色
	assert.Equal(t, "#64748b", data["color"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Create_DuplicateName(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("u-1", "餐饮").
		WillReturnRows(sqlmock.NewRows(categoryColumns()).
			AddRow("c-1", "u-1", "餐饮", nil, "#ef4444", time.Now(), time.Now()))

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.POST("/categories", NewCategoryHandler().Create)

	req := httptest.NewRequest("POST", "/categories", bytes.NewBufferString(`{"name":"餐饮"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "已存在")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_List(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	limit := 500.0
	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(categoryColumns()).
			AddRow("c-1", "u-1", "交通", nil, "#3b82f6", time.Now(), time.Now()).
			AddRow("c-2", "u-1", "餐饮", limit, "#ef4444", time.Now(), time.Now()))

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.GET("/categories", NewCategoryHandler().List)

	req := httptest.NewRequest("GET", "/categories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	list, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Delete_Blocked(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("c-1", "u-1").
		WillReturnRows(sqlmock.NewRows(categoryColumns()).
			AddRow("c-1", "u-1", "餐饮", nil, "#ef4444", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT count").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.DELETE("/categories/:id", NewCategoryHandler().Delete)

	req := httptest.NewRequest("DELETE", "/categories/c-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	// 错误信息包含受影响的记录数
	assert.Contains(t, resp.Message, "3")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Delete(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("c-1", "u-1").
		WillReturnRows(sqlmock.NewRows(categoryColumns()).
			AddRow("c-1", "u-1", "餐饮", nil, "#ef4444", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT count").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `categories`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.DELETE("/categories/:id", NewCategoryHandler().Delete)

	req := httptest.NewRequest("DELETE", "/categories/c-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Delete_NotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("c-unknown", "u-1").
		WillReturnRows(sqlmock.NewRows(categoryColumns()))

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.DELETE("/categories/:id", NewCategoryHandler().Delete)

	req := httptest.NewRequest("DELETE", "/categories/c-unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Summary(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	limit := 100.0
	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(categoryColumns()).
			AddRow("c-1", "u-1", "交通", nil, "#3b82f6", time.Now(), time.Now()).
			AddRow("c-2", "u-1", "餐饮", limit, "#ef4444", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT category_id, COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "total"}).
			AddRow("c-2", 80.0))

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.GET("/categories/summary", NewCategoryHandler().Summary)

	req := httptest.NewRequest("GET", "/categories/summary?month=2024-01", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-01", data["month"])

	items, ok := data["categories"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 2)

	// 未设置上限的类别无占比和状态
	first := items[0].(map[string]interface{})
	assert.Equal(t, "交通", first["name"])
	assert.Nil(t, first["percentage"])
	assert.Nil(t, first["status"])

	// 80/100 -> yellow
	second := items[1].(map[string]interface{})
	assert.Equal(t, "餐饮", second["name"])
	assert.Equal(t, float64(80), second["spent"])
	assert.Equal(t, float64(80), second["percentage"])
	assert.Equal(t, BudgetStatusYellow, second["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Summary_InvalidMonth(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(setUserIDMiddleware("u-1"))
	router.GET("/categories/summary", NewCategoryHandler().Summary)

	req := httptest.NewRequest("GET", "/categories/summary?month=2024-13", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}
