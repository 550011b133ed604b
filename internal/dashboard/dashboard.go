package dashboard

import (
	"context"
	"fmt"
	"time"

	"api_pos/internal/auth"
	"api_pos/internal/catalog"
	"api_pos/internal/sales"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const topProductsLimit = 10

// DayTotal is one point of the month's sales series.
type DayTotal struct {
	Day   int             `json:"day"`
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type ProductSales struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Qty       decimal.Decimal `json:"qty"`
	Total     decimal.Decimal `json:"total"`
}

type CategorySales struct {
	CategoryID uint            `json:"category_id"`
	Name       string          `json:"name"`
	Qty        decimal.Decimal `json:"qty"`
}

// Chart is the month view: daily totals, best sellers and category split.
type Chart struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	MonthTotal decimal.Decimal `json:"month_total"`
	Daily      []DayTotal      `json:"daily"`
	Top        []ProductSales  `json:"top_products"`
	Categories []CategorySales `json:"categories"`
}

type Summary struct {
	Categories  int64           `json:"total_categories"`
	Products    int64           `json:"total_products"`
	TodaySales  int64           `json:"today_transactions"`
	TodayTotal  decimal.Decimal `json:"today_sales"`
	ActiveUsers *int64          `json:"active_users,omitempty"`
	Chart       Chart           `json:"chart"`
	Date        string          `json:"date"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Service{db: db, logger: logger, now: time.Now}
}

// Summary returns today's counters and the chart for year/month. Zero
// year or month mean the current one. Staff counts are only included for
// roles that manage the shop.
func (s *Service) Summary(ctx context.Context, role auth.Role, year, month int) (*Summary, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	db := s.db.WithContext(ctx)

	out := &Summary{Date: dayStart.Format("2006-01-02")}
	if err := db.Model(&catalog.Category{}).Count(&out.Categories).Error; err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	if err := db.Model(&catalog.Product{}).Count(&out.Products).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	today := db.Model(&sales.Sale{}).Where("created_at >= ? AND created_at < ?", dayStart, dayStart.AddDate(0, 0, 1))
	if err := today.Count(&out.TodaySales).Error; err != nil {
		return nil, fmt.Errorf("count today's sales: %w", err)
	}
	total, err := s.sum(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	out.TodayTotal = total

	if role.CanManage() {
		var n int64
		if err := db.Model(&auth.User{}).Where("is_active = ?", true).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count active users: %w", err)
		}
		out.ActiveUsers = &n
	}

	chart, err := s.Chart(ctx, year, month)
	if err != nil {
		return nil, err
	}
	out.Chart = *chart
	return out, nil
}

// Chart aggregates one calendar month.
func (s *Service) Chart(ctx context.Context, year, month int) (*Chart, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)

	daily, monthTotal, err := s.daily(ctx, start, end)
	if err != nil {
		return nil, err
	}
	top, err := s.topProducts(ctx, start, end)
	if err != nil {
		return nil, err
	}
	cats, err := s.categories(ctx, start, end)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("dashboard chart built", zap.Int("year", year), zap.Int("month", month), zap.Int("top_products", len(top)))
	return &Chart{
		Year:       year,
		Month:      month,
		MonthTotal: monthTotal,
		Daily:      daily,
		Top:        top,
		Categories: cats,
	}, nil
}

func (s *Service) sum(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&sales.Sale{}).
		Select("SUM(grand_total)").
		Where("created_at >= ? AND created_at < ?", from, to).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum sales: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// daily buckets the month's sales by calendar day in Go, which keeps the
// query identical across MySQL, Postgres and SQLite date functions.
func (s *Service) daily(ctx context.Context, start, end time.Time) ([]DayTotal, decimal.Decimal, error) {
	var rows []struct {
		GrandTotal decimal.Decimal
		CreatedAt  time.Time
	}
	err := s.db.WithContext(ctx).Model(&sales.Sale{}).
		Select("grand_total, created_at").
		Where("created_at >= ? AND created_at < ?", start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("load month sales: %w", err)
	}

	days := end.AddDate(0, 0, -1).Day()
	out := make([]DayTotal, days)
	for i := range out {
		d := start.AddDate(0, 0, i)
		out[i] = DayTotal{Day: i + 1, Date: d.Format("2006-01-02"), Total: decimal.Zero}
	}
	monthTotal := decimal.Zero
	for _, r := range rows {
		day := r.CreatedAt.In(start.Location()).Day()
		out[day-1].Total = out[day-1].Total.Add(r.GrandTotal)
		monthTotal = monthTotal.Add(r.GrandTotal)
	}
	return out, monthTotal, nil
}

func (s *Service) topProducts(ctx context.Context, start, end time.Time) ([]ProductSales, error) {
	out := []ProductSales{}
	err := s.db.WithContext(ctx).Table("sale_items").
		Select("sale_items.product_id AS product_id, products.name AS name, SUM(sale_items.qty) AS qty, SUM(sale_items.total) AS total").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Where("sales.created_at >= ? AND sales.created_at < ?", start, end).
		Group("sale_items.product_id, products.name").
		Order("qty DESC").
		Limit(topProductsLimit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	return out, nil
}

func (s *Service) categories(ctx context.Context, start, end time.Time) ([]CategorySales, error) {
	out := []CategorySales{}
	err := s.db.WithContext(ctx).Table("sale_items").
		Select("categories.id AS category_id, categories.name AS name, SUM(sale_items.qty) AS qty").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Joins("JOIN categories ON categories.id = products.category_id").
		Where("sales.created_at >= ? AND sales.created_at < ?", start, end).
		Group("categories.id, categories.name").
		Order("qty DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("category distribution: %w", err)
	}
	return out, nil
}
