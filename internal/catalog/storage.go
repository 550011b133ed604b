package catalog

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/codegen"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a category or product does not exist.
	ErrNotFound = errors.New("catalog item not found")
	// ErrDuplicateCode is returned when a product code is already taken.
	ErrDuplicateCode = errors.New("duplicate product code")
	// ErrInUse is returned when a product is still referenced by recorded sales.
	ErrInUse = errors.New("catalog item referenced by sales")
)

// Storage persists categories and products.
type Storage interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Categories(ctx context.Context, activeOnly bool) ([]Category, error)
	Category(ctx context.Context, id uint) (*Category, error)
	SaveCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id uint) error
	Products(ctx context.Context, activeOnly bool) ([]Product, error)
	Product(ctx context.Context, id uint) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

// Tx is the transactional view used while assigning a product code.
type Tx interface {
	codegen.Source
	CategoryExists(ctx context.Context, id uint) (bool, error)
	InsertProduct(ctx context.Context, p *Product) error
}

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

func (g *GormStorage) Categories(ctx context.Context, activeOnly bool) ([]Category, error) {
	var out []Category
	q := g.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("status = ?", StatusActive)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GormStorage) Category(ctx context.Context, id uint) (*Category, error) {
	var c Category
	if err := g.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (g *GormStorage) SaveCategory(ctx context.Context, c *Category) error {
	return translate(g.db.WithContext(ctx).Omit("Products").Save(c).Error)
}

// DeleteCategory removes the category together with its products.
func (g *GormStorage) DeleteCategory(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Category
		if err := tx.Select("id").First(&c, id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("category_id = ?", id).Delete(&Product{}).Error; err != nil {
			return translate(err)
		}
		return translate(tx.Delete(&c).Error)
	})
}

func (g *GormStorage) Products(ctx context.Context, activeOnly bool) ([]Product, error) {
	var out []Product
	q := g.db.WithContext(ctx).Preload("Category").Order("name")
	if activeOnly {
		q = q.Where("status = ?", StatusActive)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GormStorage) Product(ctx context.Context, id uint) (*Product, error) {
	var p Product
	if err := g.db.WithContext(ctx).Preload("Category").First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// UpdateProduct writes every editable column of an existing product; the
// code never changes.
func (g *GormStorage) UpdateProduct(ctx context.Context, p *Product) error {
	res := g.db.WithContext(ctx).Model(&Product{}).Where("id = ?", p.ID).Updates(map[string]any{
		"category_id": p.CategoryID,
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"status":      p.Status,
	})
	return translate(res.Error)
}

func (g *GormStorage) DeleteProduct(ctx context.Context, id uint) error {
	res := g.db.WithContext(ctx).Delete(&Product{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LastCode(ctx context.Context, prefix string) (string, error) {
	var p Product
	err := t.db.WithContext(ctx).Select("code").
		Where("code LIKE ?", prefix+"%").
		Order("id DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return p.Code, err
}

func (t *gormTx) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&Product{}).Where("code = ?", code).Count(&n).Error
	return n > 0, err
}

func (t *gormTx) CategoryExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (t *gormTx) InsertProduct(ctx context.Context, p *Product) error {
	return translate(t.db.WithContext(ctx).Omit("Category").Create(p).Error)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateCode
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrInUse
	default:
		return fmt.Errorf("catalog storage: %w", err)
	}
}
