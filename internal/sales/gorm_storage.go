package sales

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/catalog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStorage keeps sales in a relational database.
type GormStorage struct {
	db *gorm.DB
}

var _ Storage = (*GormStorage)(nil)

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (g *GormStorage) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (g *GormStorage) Read(ctx context.Context, id uint) (*Sale, error) {
	var sale Sale
	err := g.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read sale %d: %w", id, err)
	}
	return &sale, nil
}

func (g *GormStorage) List(ctx context.Context, in ListInput) ([]Summary, error) {
	q := g.db.WithContext(ctx).Order("id DESC")
	if !in.From.IsZero() {
		q = q.Where("created_at >= ?", in.From)
	}
	if !in.To.IsZero() {
		q = q.Where("created_at < ?", in.To)
	}

	var rows []Sale
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if len(rows) == 0 {
		return []Summary{}, nil
	}

	ids := make([]uint, len(rows))
	for i, s := range rows {
		ids[i] = s.ID
	}
	var counts []struct {
		SaleID uint
		N      int64
	}
	err := g.db.WithContext(ctx).Model(&SaleItem{}).
		Select("sale_id, COUNT(*) AS n").
		Where("sale_id IN ?", ids).
		Group("sale_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count sale items: %w", err)
	}
	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.SaleID] = c.N
	}

	out := make([]Summary, len(rows))
	for i, s := range rows {
		out[i] = Summary{Sale: s, ItemCount: byID[s.ID]}
	}
	return out, nil
}

// Delete removes a sale and its items.
func (g *GormStorage) Delete(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sale_id = ?", id).Delete(&SaleItem{}).Error; err != nil {
			return fmt.Errorf("delete sale items: %w", err)
		}
		res := tx.Delete(&Sale{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete sale: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LastCode(ctx context.Context, prefix string) (string, error) {
	var sale Sale
	err := t.db.WithContext(ctx).Select("code").
		Where("code LIKE ?", prefix+"%").
		Order("id DESC").
		Take(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return sale.Code, err
}

func (t *gormTx) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&Sale{}).Where("code = ?", code).Count(&n).Error
	return n > 0, err
}

func (t *gormTx) MissingProducts(ctx context.Context, ids []uint) ([]uint, error) {
	var found []uint
	err := t.db.WithContext(ctx).Model(&catalog.Product{}).Where("id IN ?", ids).Pluck("id", &found).Error
	if err != nil {
		return nil, err
	}
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []uint
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (t *gormTx) Insert(ctx context.Context, sale *Sale) error {
	db := t.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(sale).Error; err != nil {
		return translateInsert(err)
	}
	if len(sale.Items) == 0 {
		return nil
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
	}
	if err := db.Omit(clause.Associations).Create(&sale.Items).Error; err != nil {
		return translateInsert(err)
	}
	return nil
}

func translateInsert(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateCode
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrProductMissing
	default:
		return fmt.Errorf("insert sale: %w", err)
	}
}
