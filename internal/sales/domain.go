package sales

import (
	"time"

	"api_pos/internal/catalog"

	"github.com/shopspring/decimal"
)

// Sale is a completed checkout. Totals are computed by the till and stored as sent.
type Sale struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"size:100;uniqueIndex;not null" json:"code"`
	SubTotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"sub_total"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"grand_total"`
	Tax            decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"tax"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TenderedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tendered_amount"`
	AmountChange   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_change"`
	CashierID      *uint           `gorm:"index" json:"cashier_id,omitempty"`
	Items          []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"date_added"`
	UpdatedAt      time.Time       `json:"date_updated"`
}

// SaleItem is one product line; Price is a snapshot taken at checkout.
type SaleItem struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	SaleID    uint             `gorm:"index;not null" json:"sale_id"`
	ProductID uint             `gorm:"index;not null" json:"product_id"`
	Product   *catalog.Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Price     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Qty       decimal.Decimal  `gorm:"type:decimal(12,3);not null;default:0" json:"qty"`
	Total     decimal.Decimal  `gorm:"type:decimal(17,5);not null;default:0" json:"total"`
}

// RecordInput is a checkout as posted by the till: header amounts and three
// parallel arrays describing the lines.
type RecordInput struct {
	SubTotal       string
	Tax            string
	TaxAmount      string
	GrandTotal     string
	TenderedAmount string
	AmountChange   string
	ProductIDs     []string
	Qty            []string
	Price          []string
}

type RecordResult struct {
	SaleID uint   `json:"sale_id"`
	Code   string `json:"code"`
}

// Summary is a sale row in listings.
type Summary struct {
	Sale
	ItemCount int64 `json:"item_count"`
}

// ListInput filters sales by creation time; zero values mean unbounded.
type ListInput struct {
	From time.Time
	To   time.Time
}
