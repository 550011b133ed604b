package dashboard

import (
	"context"
	"testing"
	"time"

	"api_pos/internal/auth"
	"api_pos/internal/catalog"
	"api_pos/internal/sales"
	"api_pos/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var today = time.Date(2025, time.February, 10, 15, 0, 0, 0, time.Local)

func seed(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.OpenSQLite(t, &auth.User{}, &catalog.Category{}, &catalog.Product{}, &sales.Sale{}, &sales.SaleItem{})

	drinks := catalog.Category{Name: "Drinks", Status: 1}
	food := catalog.Category{Name: "Food", Status: 1}
	require.NoError(t, db.Create(&drinks).Error)
	require.NoError(t, db.Create(&food).Error)
	soda := catalog.Product{Code: "PROD-0001", CategoryID: drinks.ID, Name: "Soda", Price: decimal.NewFromInt(50), Status: 1}
	chips := catalog.Product{Code: "PROD-0002", CategoryID: food.ID, Name: "Chips", Price: decimal.NewFromInt(100), Status: 1}
	require.NoError(t, db.Create(&soda).Error)
	require.NoError(t, db.Create(&chips).Error)

	record := func(code string, at time.Time, items ...sales.SaleItem) {
		total := decimal.Zero
		for i := range items {
			items[i].Total = items[i].Price.Mul(items[i].Qty)
			total = total.Add(items[i].Total)
		}
		sale := sales.Sale{Code: code, SubTotal: total, GrandTotal: total, CreatedAt: at, UpdatedAt: at, Items: items}
		require.NoError(t, db.Create(&sale).Error)
	}
	line := func(p catalog.Product, qty int64) sales.SaleItem {
		return sales.SaleItem{ProductID: p.ID, Price: p.Price, Qty: decimal.NewFromInt(qty)}
	}

	record("405000001", today.Add(-time.Hour), line(soda, 2), line(chips, 1))
	record("405000002", today.Add(-2*time.Hour), line(soda, 3))
	record("405000003", today.AddDate(0, 0, -5), line(chips, 1))
	record("405000004", today.AddDate(0, -1, 0), line(chips, 10))

	u := auth.User{Username: "admin", PasswordHash: "x", Role: auth.RoleAdmin, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return db
}

func newTestService(t *testing.T) *Service {
	svc := NewService(seed(t), zaptest.NewLogger(t))
	svc.now = func() time.Time { return today }
	return svc
}

func TestSummary(t *testing.T) {
	svc := newTestService(t)

	sum, err := svc.Summary(context.Background(), auth.RoleAdmin, 0, 0)
	require.NoError(t, err)

	assert.EqualValues(t, 2, sum.Categories)
	assert.EqualValues(t, 2, sum.Products)
	assert.EqualValues(t, 2, sum.TodaySales)
	assert.True(t, sum.TodayTotal.Equal(decimal.NewFromInt(350)), sum.TodayTotal.String())
	require.NotNil(t, sum.ActiveUsers)
	assert.EqualValues(t, 1, *sum.ActiveUsers)
	assert.Equal(t, "2025-02-10", sum.Date)
	assert.True(t, sum.Chart.MonthTotal.Equal(decimal.NewFromInt(450)), sum.Chart.MonthTotal.String())

	cashier, err := svc.Summary(context.Background(), auth.RoleCashier, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, cashier.ActiveUsers)
}

func TestChart(t *testing.T) {
	svc := newTestService(t)

	chart, err := svc.Chart(context.Background(), 2025, 2)
	require.NoError(t, err)

	require.Len(t, chart.Daily, 28)
	assert.Equal(t, "2025-02-05", chart.Daily[4].Date)
	assert.True(t, chart.Daily[4].Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, chart.Daily[9].Total.Equal(decimal.NewFromInt(350)))

	require.Len(t, chart.Top, 2)
	assert.Equal(t, "Soda", chart.Top[0].Name)
	assert.True(t, chart.Top[0].Qty.Equal(decimal.NewFromInt(5)))
	assert.True(t, chart.Top[0].Total.Equal(decimal.NewFromInt(250)))

	require.Len(t, chart.Categories, 2)
	assert.Equal(t, "Drinks", chart.Categories[0].Name)

	jan, err := svc.Chart(context.Background(), 2025, 1)
	require.NoError(t, err)
	require.Len(t, jan.Daily, 31)
	require.Len(t, jan.Top, 1)
	assert.True(t, jan.Top[0].Qty.Equal(decimal.NewFromInt(10)))

	_, err = svc.Chart(context.Background(), 2025, 13)
	assert.Error(t, err)
}
