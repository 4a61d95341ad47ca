package api

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ledger/database"
	"ledger/middleware"
	"ledger/models"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 消费类别处理器
type CategoryHandler struct{}

// NewCategoryHandler 创建消费类别处理器
func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// CategoryCreateRequest 创建类别请求
type CategoryCreateRequest struct {
	Name         string   `json:"name" binding:"required,min=1,max=50" example:"餐饮"`
	MonthlyLimit *float64 `json:"monthlyLimit" binding:"omitempty,gte=0" example:"500"`
	Color        string   `json:"color" binding:"omitempty,max=20" example:"#ef4444"`
}

// CategoryUpdateRequest 更新类别请求
type CategoryUpdateRequest struct {
	Name         string   `json:"name" binding:"omitempty,min=1,max=50"`
	MonthlyLimit *float64 `json:"monthlyLimit" binding:"omitempty,gte=0"`
	Color        *string  `json:"color" binding:"omitempty,max=20"`
}

// 预算状态
const (
	BudgetStatusGreen  = "green"  // 已用不足 60%
	BudgetStatusYellow = "yellow" // 已用 60%~100%
	BudgetStatusRed    = "red"    // 超支
)

// List 获取当前用户的类别列表（按名称排序）
// @Summary 获取类别列表
// @Description 获取当前用户的全部消费类别，按名称字母序排列
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var list []models.Category
	if err := database.DB.Where("user_id = ?", userID).Order("name ASC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}

// Get 获取单个类别
// @Summary 获取类别详情
// @Description 根据ID获取类别详情，仅限本人的类别
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param id path string true "类别ID"
// @Success 200 {object} Response{data=models.Category} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&cat).Error; err != nil {
		NotFound(c, "类别不存在")
		return
	}
	Success(c, cat)
}

// Create 创建类别
// @Summary 创建类别
// @Description 创建新的消费类别，可设置每月预算上限和颜色
// @Tags 类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "类别信息"
// @Success 201 {object} Response{data=models.Category} "创建成功"
// @Failure 400 {object} Response "参数错误或类别名称已存在"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "名称不能为空")
		return
	}

	// 同一用户下名称唯一
	var existing models.Category
	if err := database.DB.Where("user_id = ? AND name = ?", userID, req.Name).First(&existing).Error; err == nil {
		BadRequest(c, "类别名称已存在")
		return
	}

	color := req.Color
	if color == "" {
		color = "#64748b" // 默认灰色
	}
	cat := models.Category{
		UserID:       userID,
		Name:         req.Name,
		MonthlyLimit: req.MonthlyLimit,
		Color:        color,
	}
	if err := database.DB.Create(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}
	Created(c, "创建成功", cat)
}

// Update 更新类别
// @Summary 更新类别
// @Description 更新指定类别，支持部分字段更新；修改名称时重新校验唯一性
// @Tags 类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "类别ID"
// @Param request body CategoryUpdateRequest true "更新的类别信息"
// @Success 200 {object} Response{data=models.Category} "更新成功"
// @Failure 400 {object} Response "参数错误或类别名称已存在"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&cat).Error; err != nil {
		NotFound(c, "类别不存在")
		return
	}

	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			BadRequest(c, "名称不能为空")
			return
		}
		if req.Name != cat.Name {
			var existing models.Category
			if err := database.DB.Where("user_id = ? AND name = ? AND id != ?", userID, req.Name, cat.ID).
				First(&existing).Error; err == nil {
				BadRequest(c, "类别名称已存在")
				return
			}
		}
		updates["name"] = req.Name
	}
	if req.MonthlyLimit != nil {
		updates["monthly_limit"] = *req.MonthlyLimit
	}
	if req.Color != nil {
		color := *req.Color
		if color == "" {
			color = "#64748b" // 默认灰色
		}
		updates["color"] = color
	}
	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", cat)
		return
	}

	if err := database.DB.Model(&cat).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	database.DB.First(&cat, "id = ?", cat.ID)
	SuccessWithMessage(c, "更新成功", cat)
}

// Delete 删除类别
// @Summary 删除类别
// @Description 删除指定类别；若仍有消费记录引用该类别则拒绝删除并返回记录数
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param id path string true "类别ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "类别下仍有消费记录"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&cat).Error; err != nil {
		NotFound(c, "类别不存在")
		return
	}

	// 仍被消费记录引用的类别不可删除
	var count int64
	if err := database.DB.Model(&models.Expense{}).Where("category_id = ?", cat.ID).Count(&count).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	if count > 0 {
		BadRequest(c, fmt.Sprintf("该类别下仍有 %d 笔消费记录，无法删除", count))
		return
	}

	if err := database.DB.Delete(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// CategorySummaryItem 类别月度汇总条目
type CategorySummaryItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Color        string   `json:"color"`
	MonthlyLimit *float64 `json:"monthlyLimit"`
	Spent        float64  `json:"spent"`
	Percentage   *int     `json:"percentage"`
	Status       *string  `json:"status"`
}

// Summary 类别月度预算汇总
// @Summary 获取类别月度汇总
// @Description 统计指定月份每个类别的支出总额、预算占比和预算状态（green/yellow/red）
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param month query string false "月份（格式：2024-01，默认当前月）"
// @Success 200 {object} Response "获取成功"
// @Failure 400 {object} Response "月份格式错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories/summary [get]
func (h *CategoryHandler) Summary(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	monthStr := c.Query("month")
	if monthStr == "" {
		monthStr = time.Now().Format("2006-01")
	}
	monthStart, err := time.ParseInLocation("2006-01", monthStr, time.Local)
	if err != nil {
		BadRequest(c, "month格式错误，应为: 2024-01")
		return
	}
	monthEnd := monthStart.AddDate(0, 1, 0)

	var cats []models.Category
	if err := database.DB.Where("user_id = ?", userID).Order("name ASC").Find(&cats).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	// 当月各类别支出总额
	type categorySpent struct {
		CategoryID string  `json:"category_id"`
		Total      float64 `json:"total"`
	}
	var spent []categorySpent
	database.DB.Model(&models.Expense{}).
		Select("category_id, COALESCE(SUM(amount), 0) as total").
		Where("user_id = ? AND category_id IS NOT NULL AND expense_date >= ? AND expense_date < ?",
			userID, monthStart, monthEnd).
		Group("category_id").
		Scan(&spent)

	spentByID := make(map[string]float64, len(spent))
	for _, s := range spent {
		spentByID[s.CategoryID] = s.Total
	}

	items := make([]CategorySummaryItem, 0, len(cats))
	for _, cat := range cats {
		item := CategorySummaryItem{
			ID:           cat.ID,
			Name:         cat.Name,
			Color:        cat.Color,
			MonthlyLimit: cat.MonthlyLimit,
			Spent:        spentByID[cat.ID],
		}
		item.Percentage, item.Status = ClassifyBudgetStatus(item.Spent, cat.MonthlyLimit)
		items = append(items, item)
	}

	Success(c, gin.H{
		"month":      monthStr,
		"categories": items,
	})
}

// ClassifyBudgetStatus 计算预算占比与状态
// 未设置预算上限时两者均为 nil；占比四舍五入取整仅用于展示，状态按原始比例判定
func ClassifyBudgetStatus(spent float64, limit *float64) (*int, *string) {
	if limit == nil || *limit <= 0 {
		return nil, nil
	}
	ratio := spent / *limit * 100
	percentage := int(math.Round(ratio))

	var status string
	switch {
	case ratio < 60:
		status = BudgetStatusGreen
	case ratio <= 100:
		status = BudgetStatusYellow
	default:
		status = BudgetStatusRed
	}
	return &percentage, &status
}
