package api

import (
	"errors"
	"time"

	"ledger/database"
	"ledger/middleware"
	"ledger/models"

	"github.com/gin-gonic/gin"
)

// ExpenseHandler 消费记录处理器
type ExpenseHandler struct{}

// NewExpenseHandler 创建消费记录处理器
func NewExpenseHandler() *ExpenseHandler {
	return &ExpenseHandler{}
}

// ExpenseCreateRequest 创建消费记录请求
type ExpenseCreateRequest struct {
	Title      string  `json:"title" binding:"required,min=1,max=100" example:"午餐"`
	Amount     float64 `json:"amount" binding:"required,gt=0" example:"39.50"`
	Date       string  `json:"date" binding:"required" example:"2024-01-15"`
	CategoryID *string `json:"categoryId" example:"c1f0b4a2-..."`
}

// ExpenseUpdateRequest 更新消费记录请求
type ExpenseUpdateRequest struct {
	Title      string   `json:"title" binding:"omitempty,min=1,max=100"`
	Amount     *float64 `json:"amount" binding:"omitempty,gt=0"`
	Date       string   `json:"date" binding:"omitempty"`
	CategoryID *string  `json:"categoryId"` // 传空字符串表示清除类别
}

// ExpenseListRequest 消费记录列表请求
type ExpenseListRequest struct {
	CategoryID string `form:"categoryId"`
	StartDate  string `form:"startDate"`
	EndDate    string `form:"endDate"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	SortBy     string `form:"sortBy"`
	SortOrder  string `form:"sortOrder"`
}

// 可排序字段到数据库列的映射，不在表中的字段回退为按日期倒序
var expenseSortColumns = map[string]string{
	"date":      "expense_date",
	"amount":    "amount",
	"title":     "title",
	"createdAt": "created_at",
}

// Create 创建消费记录
// @Summary 创建消费记录
// @Description 创建一条新的消费记录，类别必须属于当前用户
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExpenseCreateRequest true "消费记录信息"
// @Success 201 {object} Response{data=models.Expense} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ExpenseCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 解析日期（仅日历日期，不含时间）
	expenseDate, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		BadRequest(c, "日期格式错误，应为: 2024-01-15")
		return
	}

	// 校验类别归属
	if req.CategoryID != nil && *req.CategoryID != "" {
		var cat models.Category
		if err := database.DB.Where("id = ? AND user_id = ?", *req.CategoryID, userID).First(&cat).Error; err != nil {
			BadRequest(c, "无效的消费类别")
			return
		}
	} else {
		req.CategoryID = nil
	}

	expense := models.Expense{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Amount:      req.Amount,
		ExpenseDate: expenseDate,
	}
	if err := database.DB.Create(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建消费记录失败"))
		return
	}

	Created(c, "创建成功", expense)
}

// List 获取消费记录列表
// @Summary 获取消费记录列表
// @Description 获取当前用户的消费记录，支持类别与日期范围筛选、分页和排序
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param categoryId query string false "类别ID"
// @Param startDate query string false "开始日期 (2024-01-01)，含当天"
// @Param endDate query string false "结束日期 (2024-12-31)，含当天"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param sortBy query string false "排序字段：date/amount/title/createdAt" default(date)
// @Param sortOrder query string false "排序方向：asc/desc" default(desc)
// @Success 200 {object} Response{data=PageResponse{list=[]models.Expense}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 默认分页参数
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	query := database.DB.Model(&models.Expense{}).Where("user_id = ?", userID)

	// 类别筛选
	if req.CategoryID != "" {
		query = query.Where("category_id = ?", req.CategoryID)
	}

	// 日期范围筛选（闭区间）
	if req.StartDate != "" {
		if start, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local); err == nil {
			query = query.Where("expense_date >= ?", start)
		}
	}
	if req.EndDate != "" {
		if end, err := time.ParseInLocation("2006-01-02", req.EndDate, time.Local); err == nil {
			query = query.Where("expense_date <= ?", end)
		}
	}

	// 获取总数
	var total int64
	query.Count(&total)

	// 排序：非法字段静默回退为按日期倒序
	column, ok := expenseSortColumns[req.SortBy]
	order := "DESC"
	if !ok {
		column = "expense_date"
	} else if req.SortOrder == "asc" {
		order = "ASC"
	}

	var expenses []models.Expense
	offset := (req.Page - 1) * req.Limit
	if err := query.Preload("Category").
		Order(column + " " + order).
		Offset(offset).Limit(req.Limit).
		Find(&expenses).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	totalPages := (total + int64(req.Limit) - 1) / int64(req.Limit)
	Success(c, PageResponse{
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages,
		List:       expenses,
	})
}

// Get 获取单条消费记录
// @Summary 获取消费记录详情
// @Description 根据ID获取消费记录，仅限本人的记录
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param id path string true "消费记录ID"
// @Success 200 {object} Response{data=models.Expense} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var expense models.Expense
	if err := database.DB.Preload("Category").
		Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&expense).Error; err != nil {
		NotFound(c, "记录不存在")
		return
	}
	Success(c, expense)
}

// Update 更新消费记录
// @Summary 更新消费记录
// @Description 更新指定的消费记录，支持部分字段更新；修改类别时重新校验归属
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "消费记录ID"
// @Param request body ExpenseUpdateRequest true "消费记录信息"
// @Success 200 {object} Response{data=models.Expense} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [put]
func (h *ExpenseHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var expense models.Expense
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&expense).Error; err != nil {
		NotFound(c, "记录不存在")
		return
	}

	var req ExpenseUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Amount != nil {
		updates["amount"] = *req.Amount
	}
	if req.Date != "" {
		expenseDate, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			BadRequest(c, "日期格式错误，应为: 2024-01-15")
			return
		}
		updates["expense_date"] = expenseDate
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			updates["category_id"] = nil
		} else {
			var cat models.Category
			if err := database.DB.Where("id = ? AND user_id = ?", *req.CategoryID, userID).First(&cat).Error; err != nil {
				BadRequest(c, "无效的消费类别")
				return
			}
			updates["category_id"] = *req.CategoryID
		}
	}
	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", expense)
		return
	}

	if err := database.DB.Model(&expense).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}

	// 重新获取更新后的记录
	database.DB.Preload("Category").First(&expense, "id = ?", expense.ID)
	SuccessWithMessage(c, "更新成功", expense)
}

// Delete 删除消费记录
// @Summary 删除消费记录
// @Description 删除指定的消费记录，记录不存在或已删除时返回 404
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param id path string true "消费记录ID"
// @Success 200 {object} Response "删除成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var expense models.Expense
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&expense).Error; err != nil {
		NotFound(c, "记录不存在")
		return
	}

	if err := database.DB.Delete(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// CategoryBreakdownItem 按类别统计条目
type CategoryBreakdownItem struct {
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Total      float64 `json:"total"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TimeBucketItem 时间序列统计条目
type TimeBucketItem struct {
	Bucket string  `json:"bucket"`
	Total  float64 `json:"total"`
}

// Summary 获取消费汇总统计
// @Summary 获取消费汇总统计
// @Description 按统计周期返回两组聚合：各类别支出占比（按金额降序）与按时间分桶的支出序列（week/month 按天，year 按月）
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param period query string false "统计周期：week（近7天）/month（近30天）/year（近12个月）" default(month)
// @Success 200 {object} Response "获取成功"
// @Failure 400 {object} Response "period参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses/summary [get]
func (h *ExpenseHandler) Summary(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	period := c.DefaultQuery("period", "month")
	start, end, bucketFormat, err := SummaryWindow(period, time.Now())
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	// 各类别支出总额（含未分类），按金额降序
	var breakdown []CategoryBreakdownItem
	database.DB.Model(&models.Expense{}).
		Select("COALESCE(categories.name, ?) as name, COALESCE(categories.color, '#64748b') as color, "+
			"COALESCE(SUM(expenses.amount), 0) as total, COUNT(*) as count", models.UncategorizedName).
		Joins("LEFT JOIN categories ON categories.id = expenses.category_id").
		Where("expenses.user_id = ? AND expenses.expense_date >= ? AND expenses.expense_date < ?",
			userID, start, end).
		Group("expenses.category_id, categories.name, categories.color").
		Order("total DESC").
		Scan(&breakdown)

	var totalAmount float64
	for _, item := range breakdown {
		totalAmount += item.Total
	}
	for i := range breakdown {
		if totalAmount > 0 {
			breakdown[i].Percentage = breakdown[i].Total / totalAmount * 100
		}
	}

	// 按时间分桶的支出序列，时间升序
	var series []TimeBucketItem
	database.DB.Model(&models.Expense{}).
		Select("DATE_FORMAT(expense_date, ?) as bucket, COALESCE(SUM(amount), 0) as total", bucketFormat).
		Where("user_id = ? AND expense_date >= ? AND expense_date < ?", userID, start, end).
		Group("bucket").
		Order("bucket ASC").
		Scan(&series)

	Success(c, gin.H{
		"period":    period,
		"startDate": start.Format("2006-01-02"),
		"endDate":   end.AddDate(0, 0, -1).Format("2006-01-02"),
		"total":     totalAmount,
		"breakdown": breakdown,
		"series":    series,
	})
}

// SummaryWindow 计算统计周期对应的时间窗口 [start, end) 与分桶格式
// week=近7天、month=近30天（按天分桶），year=近12个月（按月分桶）
func SummaryWindow(period string, now time.Time) (start, end time.Time, bucketFormat string, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end = today.AddDate(0, 0, 1)

	switch period {
	case "week":
		start = today.AddDate(0, 0, -6)
		bucketFormat = "%Y-%m-%d"
	case "month":
		start = today.AddDate(0, 0, -29)
		bucketFormat = "%Y-%m-%d"
	case "year":
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start = monthStart.AddDate(0, -11, 0)
		bucketFormat = "%Y-%m"
	default:
		err = errInvalidPeriod
	}
	return
}

var errInvalidPeriod = errors.New("period参数错误，可选值：week、month、year")
