package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Expense 消费记录模型
// CategoryID 可为空：类别被删除后记录保留为"未分类"
type Expense struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"userId" gorm:"size:36;not null;index"`
	CategoryID  *string   `json:"categoryId" gorm:"size:36;index"`
	Title       string    `json:"title" gorm:"size:100;not null"`
	Amount      float64   `json:"amount" gorm:"type:decimal(10,2);not null"`
	ExpenseDate time.Time `json:"date" gorm:"type:date;not null;index"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	User        User      `json:"-" gorm:"foreignKey:UserID"`
	Category    *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}

// BeforeCreate 创建前生成 UUID 主键
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// UncategorizedName 无类别记录在统计中的展示名称
const UncategorizedName = "未分类"
