package sales

import (
	"context"
	"sync"
	"testing"
	"time"

	"api_pos/internal/catalog"
	"api_pos/internal/codegen"
	"api_pos/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func seedProducts(t *testing.T, db *gorm.DB) {
	t.Helper()
	cat := catalog.Category{Name: "Drinks", Status: catalog.StatusActive}
	require.NoError(t, db.Create(&cat).Error)
	for i, name := range []string{"Soda", "Juice"} {
		p := catalog.Product{
			Code:       catalog.ProductCodes.Format(i + 1),
			CategoryID: cat.ID,
			Name:       name,
			Price:      decimal.NewFromInt(50),
			Status:     catalog.StatusActive,
		}
		require.NoError(t, db.Create(&p).Error)
	}
}

func newGormService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenSQLite(t, &catalog.Category{}, &catalog.Product{}, &Sale{}, &SaleItem{})
	seedProducts(t, db)
	return newTestService(t, NewGormStorage(db)), db
}

func TestGormStorage_RecordAndRead(t *testing.T) {
	svc, _ := newGormService(t)
	ctx := context.Background()

	res, err := svc.Record(ctx, nil, checkout())
	require.NoError(t, err)
	assert.Equal(t, "405000001", res.Code)

	sale, err := svc.Get(ctx, res.SaleID)
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	require.NotNil(t, sale.Items[0].Product)
	assert.Equal(t, "Soda", sale.Items[0].Product.Name)
	assert.True(t, sale.Items[1].Total.Equal(decimal.NewFromInt(150)))
	assert.True(t, sale.GrandTotal.Equal(decimal.NewFromInt(250)))

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStorage_MissingProductRollsBack(t *testing.T) {
	svc, db := newGormService(t)

	in := checkout()
	in.ProductIDs[1] = "42"
	_, err := svc.Record(context.Background(), nil, in)
	assert.ErrorIs(t, err, ErrProductMissing)

	var sales, items int64
	require.NoError(t, db.Model(&Sale{}).Count(&sales).Error)
	require.NoError(t, db.Model(&SaleItem{}).Count(&items).Error)
	assert.Zero(t, sales)
	assert.Zero(t, items)
}

func TestGormStorage_ConcurrentRecordsGetDistinctCodes(t *testing.T) {
	svc, _ := newGormService(t)
	const workers = 20

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[string]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Record(context.Background(), nil, checkout())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			codes[res.Code] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, codes, workers)
}

func TestGormStorage_ListAndDelete(t *testing.T) {
	svc, db := newGormService(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, nil, checkout())
	require.NoError(t, err)
	in := checkout()
	in.ProductIDs, in.Qty, in.Price = []string{"1"}, []string{"1"}, []string{"50"}
	second, err := svc.Record(ctx, nil, in)
	require.NoError(t, err)

	list, err := svc.List(ctx, ListInput{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.SaleID, list[0].ID, "newest first")
	assert.EqualValues(t, 1, list[0].ItemCount)
	assert.EqualValues(t, 2, list[1].ItemCount)

	future, err := svc.List(ctx, ListInput{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	require.NoError(t, svc.Delete(ctx, first.SaleID))
	var items int64
	require.NoError(t, db.Model(&SaleItem{}).Where("sale_id = ?", first.SaleID).Count(&items).Error)
	assert.Zero(t, items)
	assert.ErrorIs(t, svc.Delete(ctx, first.SaleID), ErrNotFound)
}

func TestGormStorage_GeneratorFallsBackOnHandMadeCode(t *testing.T) {
	svc, db := newGormService(t)
	svc.codes = codegen.New(nil, codegen.WithSuffixFunc(func(int) string { return "AB" }))

	// An older row already holds the next sequential code.
	require.NoError(t, db.Create(&Sale{Code: "405000002"}).Error)
	require.NoError(t, db.Create(&Sale{Code: "405000001"}).Error)

	res, err := svc.Record(context.Background(), nil, checkout())
	require.NoError(t, err)
	assert.Equal(t, "405000002-AB", res.Code)
}
