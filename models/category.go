package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category 消费类别，归属于单个用户，可设置每月预算上限
type Category struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       string    `json:"userId" gorm:"size:36;not null;index;uniqueIndex:uk_user_category_name"`
	Name         string    `json:"name" gorm:"size:50;not null;uniqueIndex:uk_user_category_name"`
	MonthlyLimit *float64  `json:"monthlyLimit" gorm:"type:decimal(10,2)"` // 每月预算上限，NULL 表示不限额
	Color        string    `json:"color" gorm:"size:20;default:#64748b"`   // 颜色代码，如 #ef4444
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	User         User      `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Category) TableName() string {
	return "categories"
}

// BeforeCreate 创建前生成 UUID 主键
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// DefaultCategory 新用户默认类别
type DefaultCategory struct {
	Name  string
	Color string
}

// GetDefaultCategories 获取新用户默认创建的五个类别（颜色与前端 CSS 保持一致）
func GetDefaultCategories() []DefaultCategory {
	return []DefaultCategory{
		{"餐饮", "#ef4444"}, // 红色
		{"交通", "#3b82f6"}, // 蓝色
		{"购物", "#a855f7"}, // 紫色
		{"娱乐", "#ec4899"}, // 粉色
		{"其他", "#64748b"}, // 灰色
	}
}
