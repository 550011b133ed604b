package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"api_pos/internal/codegen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrValidation is returned when a checkout payload is malformed.
	ErrValidation = errors.New("invalid sale input")
	// ErrProductMissing is returned when a line references an unknown product.
	ErrProductMissing = errors.New("product does not exist")
	// ErrCodeExhausted is returned when no free sale code could be stored.
	ErrCodeExhausted = errors.New("could not assign a unique sale code")
)

const (
	maxInsertAttempts = 3

	// Column scales; inputs with finer precision would be rounded on insert.
	moneyScale = 2
	qtyScale   = 3
)

// CodeTemplate returns the receipt code template for the year of now: the
// prefix is twice the year, so 2025 receipts read 405000001, 405000002...
func CodeTemplate(now time.Time) codegen.Template {
	return codegen.Template{
		Prefix:    strconv.Itoa(now.Year() * 2),
		Width:     5,
		Separator: "-",
		SuffixLen: 2,
	}
}

// Service provides high-level sales management operations on a Storage backend.
type Service struct {
	storage Storage
	codes   *codegen.Generator
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new Service.
func NewService(storage Storage, codes *codegen.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if codes == nil {
		codes = codegen.New(nil)
	}

	return &Service{
		storage: storage,
		codes:   codes,
		logger:  logger,
		now:     time.Now,
	}
}

// Record validates a checkout and stores the sale with all its lines in one
// transaction under a freshly generated code.
func (s *Service) Record(ctx context.Context, cashierID *uint, in RecordInput) (*RecordResult, error) {
	draft, err := buildSale(in)
	if err != nil {
		s.logger.Warn("rejected sale input", zap.Error(err))
		return nil, err
	}
	draft.CashierID = cashierID

	tmpl := CodeTemplate(s.now())
	productIDs := make([]uint, len(draft.Items))
	for i, item := range draft.Items {
		productIDs[i] = item.ProductID
	}

	for attempt := 1; ; attempt++ {
		sale := draft.clone()
		err = s.codes.Do(ctx, tmpl.Prefix, func(ctx context.Context) error {
			return s.storage.WithinTx(ctx, func(tx Tx) error {
				missing, err := tx.MissingProducts(ctx, productIDs)
				if err != nil {
					return fmt.Errorf("check products: %w", err)
				}
				if len(missing) > 0 {
					return fmt.Errorf("%w: %v", ErrProductMissing, missing)
				}
				if sale.Code, err = s.codes.Next(ctx, tmpl, tx); err != nil {
					return err
				}
				return tx.Insert(ctx, sale)
			})
		})

		switch {
		case err == nil:
			s.logger.Info("sale recorded",
				zap.Uint("sale_id", sale.ID),
				zap.String("code", sale.Code),
				zap.Int("items", len(sale.Items)),
				zap.String("grand_total", sale.GrandTotal.String()),
			)
			return &RecordResult{SaleID: sale.ID, Code: sale.Code}, nil
		case errors.Is(err, ErrDuplicateCode) && attempt < maxInsertAttempts:
			s.logger.Warn("sale code collision, retrying", zap.String("code", sale.Code), zap.Int("attempt", attempt))
		case errors.Is(err, ErrDuplicateCode), errors.Is(err, codegen.ErrExhausted):
			s.logger.Error("failed to assign sale code", zap.Error(err))
			return nil, ErrCodeExhausted
		case errors.Is(err, ErrProductMissing):
			s.logger.Warn("sale references unknown products", zap.Error(err))
			return nil, err
		default:
			s.logger.Error("failed to save sale", zap.Error(err))
			return nil, fmt.Errorf("failed to save sale: %w", err)
		}
	}
}

// Get returns a sale with its lines and their products, as printed on a receipt.
func (s *Service) Get(ctx context.Context, id uint) (*Sale, error) {
	return s.storage.Read(ctx, id)
}

// List returns sales newest first with their line counts.
func (s *Service) List(ctx context.Context, in ListInput) ([]Summary, error) {
	out, err := s.storage.List(ctx, in)
	if err != nil {
		s.logger.Error("failed to list sales", zap.Error(err))
		return nil, err
	}
	return out, nil
}

// Delete removes a sale together with its lines.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to delete sale", zap.Uint("sale_id", id), zap.Error(err))
		}
		return err
	}
	s.logger.Info("sale deleted", zap.Uint("sale_id", id))
	return nil
}

func buildSale(in RecordInput) (*Sale, error) {
	sale := &Sale{}
	header := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"sub_total", in.SubTotal, &sale.SubTotal},
		{"tax", in.Tax, &sale.Tax},
		{"tax_amount", in.TaxAmount, &sale.TaxAmount},
		{"grand_total", in.GrandTotal, &sale.GrandTotal},
		{"tendered_amount", in.TenderedAmount, &sale.TenderedAmount},
		{"amount_change", in.AmountChange, &sale.AmountChange},
	}
	for _, f := range header {
		v, err := parseAmount(f.name, f.value, moneyScale)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	n := len(in.ProductIDs)
	if n == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if len(in.Qty) != n || len(in.Price) != n {
		return nil, fmt.Errorf("%w: product_id, qty and price must have the same length", ErrValidation)
	}

	sale.Items = make([]SaleItem, n)
	for i := 0; i < n; i++ {
		pid, err := strconv.ParseUint(strings.TrimSpace(in.ProductIDs[i]), 10, 0)
		if err != nil || pid == 0 {
			return nil, fmt.Errorf("%w: product_id[%d] must be a positive integer", ErrValidation, i)
		}
		qty, err := parseAmount(fmt.Sprintf("qty[%d]", i), in.Qty[i], qtyScale)
		if err != nil {
			return nil, err
		}
		if !qty.IsPositive() {
			return nil, fmt.Errorf("%w: qty[%d] must be greater than zero", ErrValidation, i)
		}
		price, err := parseAmount(fmt.Sprintf("price[%d]", i), in.Price[i], moneyScale)
		if err != nil {
			return nil, err
		}
		sale.Items[i] = SaleItem{
			ProductID: uint(pid),
			Price:     price,
			Qty:       qty,
			Total:     price.Mul(qty),
		}
	}
	return sale, nil
}

// parseAmount reads a non-negative number with at most scale decimal places.
func parseAmount(field, raw string, scale int32) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number", ErrValidation, field)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
	}
	if !v.Equal(v.Truncate(scale)) {
		return decimal.Zero, fmt.Errorf("%w: %s allows at most %d decimal places", ErrValidation, field, scale)
	}
	return v, nil
}

func (s *Sale) clone() *Sale {
	cp := *s
	cp.Items = append([]SaleItem(nil), s.Items...)
	return &cp
}
