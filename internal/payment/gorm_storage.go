package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStorage struct {
	db *gorm.DB
}

var _ Storage = (*GormStorage)(nil)

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (g *GormStorage) Create(ctx context.Context, s *Session) error {
	err := g.db.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create payment session: %w", err)
	}
	return nil
}

func (g *GormStorage) FindByCheckoutID(ctx context.Context, checkoutID string) (*Session, error) {
	return g.find(g.db.WithContext(ctx), "checkout_request_id = ?", checkoutID)
}

func (g *GormStorage) FindByMerchantID(ctx context.Context, merchantID string) (*Session, error) {
	return g.find(g.db.WithContext(ctx), "merchant_request_id = ?", merchantID)
}

func (g *GormStorage) find(db *gorm.DB, query string, arg string) (*Session, error) {
	var s Session
	err := db.Where(query, arg).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment session: %w", err)
	}
	return &s, nil
}

func (g *GormStorage) Resolve(ctx context.Context, checkoutID string, fn func(s *Session) error) (*Session, error) {
	var resolved *Session
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		current, err := g.find(q, "checkout_request_id = ?", checkoutID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			resolved = current
			return ErrAlreadyResolved
		}

		next := *current
		if err := fn(&next); err != nil {
			return err
		}
		next.UpdatedAt = time.Now()

		res := tx.Model(&Session{}).
			Where("id = ? AND status = ?", current.ID, StatusPending).
			Updates(map[string]any{
				"status":           next.Status,
				"receipt_number":   next.ReceiptNumber,
				"amount":           next.Amount,
				"transaction_date": next.TransactionDate,
				"raw_response":     next.RawResponse,
				"updated_at":       next.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update payment session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			resolved = current
			return ErrAlreadyResolved
		}
		resolved = &next
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyResolved) {
		return nil, err
	}
	return resolved, err
}

func (g *GormStorage) List(ctx context.Context, in ListInput) ([]Session, error) {
	q := g.db.WithContext(ctx).Order("id DESC")
	if in.Status != "" {
		q = q.Where("status = ?", in.Status)
	}
	if in.Phone != "" {
		q = q.Where("phone_number = ?", in.Phone)
	}
	if in.Limit > 0 {
		q = q.Limit(in.Limit)
	}
	var out []Session
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list payment sessions: %w", err)
	}
	return out, nil
}
