package catalog

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusInactive = 0
	StatusActive   = 1
)

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:250;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Status      int       `gorm:"not null;default:1" json:"status"`
	Products    []Product `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"date_added"`
	UpdatedAt   time.Time `json:"date_updated"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"size:100;uniqueIndex;not null" json:"code"`
	CategoryID  uint            `gorm:"index;not null" json:"category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name        string          `gorm:"size:250;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Status      int             `gorm:"not null;default:1" json:"status"`
	CreatedAt   time.Time       `json:"date_added"`
	UpdatedAt   time.Time       `json:"date_updated"`
}

// CategoryInput is the writable part of a category.
type CategoryInput struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	Status      *int   `json:"status" form:"status"`
}

// ProductInput is the writable part of a product. Price accepts JSON numbers
// and numeric strings alike.
type ProductInput struct {
	CategoryID  uint        `json:"category_id" form:"category_id"`
	Name        string      `json:"name" form:"name"`
	Description string      `json:"description" form:"description"`
	Price       json.Number `json:"price" form:"price"`
	Status      *int        `json:"status" form:"status"`
}
