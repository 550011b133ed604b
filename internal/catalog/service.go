package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"api_pos/internal/codegen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrValidation is returned when catalog input is malformed.
	ErrValidation = errors.New("invalid catalog input")
	// ErrCategoryMissing is returned when a product points at an unknown category.
	ErrCategoryMissing = errors.New("category does not exist")
)

// ProductCodes is the template behind PROD-0001 style product codes.
var ProductCodes = codegen.Template{Prefix: "PROD-", Width: 4, Separator: "-", SuffixLen: 2}

const maxInsertAttempts = 3

// Service manages categories and products.
type Service struct {
	storage Storage
	codes   *codegen.Generator
	logger  *zap.Logger
}

func NewService(storage Storage, codes *codegen.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if codes == nil {
		codes = codegen.New(nil)
	}
	return &Service{storage: storage, codes: codes, logger: logger}
}

func (s *Service) Categories(ctx context.Context, activeOnly bool) ([]Category, error) {
	return s.storage.Categories(ctx, activeOnly)
}

func (s *Service) Category(ctx context.Context, id uint) (*Category, error) {
	return s.storage.Category(ctx, id)
}

// SaveCategory creates a category when id is zero and updates it otherwise.
func (s *Service) SaveCategory(ctx context.Context, id uint, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}

	c := &Category{}
	if id != 0 {
		if c, err = s.storage.Category(ctx, id); err != nil {
			return nil, err
		}
	}
	c.Name = name
	c.Description = strings.TrimSpace(in.Description)
	c.Status = status

	if err := s.storage.SaveCategory(ctx, c); err != nil {
		s.logger.Error("failed to save category", zap.Uint("category_id", id), zap.Error(err))
		return nil, err
	}
	s.logger.Info("category saved", zap.Uint("category_id", c.ID))
	return c, nil
}

// DeleteCategory removes a category and every product under it.
func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to delete category", zap.Uint("category_id", id), zap.Error(err))
		}
		return err
	}
	s.logger.Info("category deleted", zap.Uint("category_id", id))
	return nil
}

func (s *Service) Products(ctx context.Context, activeOnly bool) ([]Product, error) {
	return s.storage.Products(ctx, activeOnly)
}

func (s *Service) Product(ctx context.Context, id uint) (*Product, error) {
	return s.storage.Product(ctx, id)
}

// CreateProduct stores a new product under a freshly generated code.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	draft, err := buildProduct(in)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		p := *draft
		err = s.codes.Do(ctx, ProductCodes.Prefix, func(ctx context.Context) error {
			return s.storage.WithinTx(ctx, func(tx Tx) error {
				ok, err := tx.CategoryExists(ctx, p.CategoryID)
				if err != nil {
					return err
				}
				if !ok {
					return ErrCategoryMissing
				}
				if p.Code, err = s.codes.Next(ctx, ProductCodes, tx); err != nil {
					return err
				}
				return tx.InsertProduct(ctx, &p)
			})
		})
		if errors.Is(err, ErrDuplicateCode) && attempt < maxInsertAttempts {
			s.logger.Warn("product code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrCategoryMissing) {
				s.logger.Error("failed to create product", zap.String("name", draft.Name), zap.Error(err))
			}
			return nil, err
		}
		s.logger.Info("product created", zap.Uint("product_id", p.ID), zap.String("code", p.Code))
		return &p, nil
	}
}

// UpdateProduct changes a product's details, keeping its code.
func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*Product, error) {
	draft, err := buildProduct(in)
	if err != nil {
		return nil, err
	}
	current, err := s.storage.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.CategoryID != draft.CategoryID {
		if _, err := s.storage.Category(ctx, draft.CategoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrCategoryMissing
			}
			return nil, err
		}
	}

	draft.ID = current.ID
	draft.Code = current.Code
	if err := s.storage.UpdateProduct(ctx, draft); err != nil {
		s.logger.Error("failed to update product", zap.Uint("product_id", id), zap.Error(err))
		return nil, err
	}
	return s.storage.Product(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.storage.DeleteProduct(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to delete product", zap.Uint("product_id", id), zap.Error(err))
		}
		return err
	}
	s.logger.Info("product deleted", zap.Uint("product_id", id))
	return nil
}

func buildProduct(in ProductInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.CategoryID == 0 {
		return nil, fmt.Errorf("%w: category_id is required", ErrValidation)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(in.Price.String()))
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	return &Product{
		CategoryID:  in.CategoryID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       price,
		Status:      status,
	}, nil
}

func parseStatus(v *int) (int, error) {
	if v == nil {
		return StatusActive, nil
	}
	if *v != StatusActive && *v != StatusInactive {
		return 0, fmt.Errorf("%w: status must be 0 or 1", ErrValidation)
	}
	return *v, nil
}
