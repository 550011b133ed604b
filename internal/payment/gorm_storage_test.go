package payment

import (
	"context"
	"sync"
	"testing"

	"api_pos/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newGormStorage(t *testing.T) *GormStorage {
	t.Helper()
	return NewGormStorage(testutil.OpenSQLite(t, &Session{}))
}

func pendingSession(checkoutID, merchantID string) *Session {
	return &Session{
		MerchantRequestID: merchantID,
		CheckoutRequestID: checkoutID,
		PhoneNumber:       "254712345678",
		Amount:            decimal.NewFromInt(100),
		Status:            StatusPending,
		RawResponse:       datatypes.JSON(`{"ResponseCode":"0"}`),
	}
}

func TestGormStorage_CreateAndFind(t *testing.T) {
	store := newGormStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pendingSession("C1", "M1")))
	assert.ErrorIs(t, store.Create(ctx, pendingSession("C1", "M2")), ErrDuplicate)

	byCheckout, err := store.FindByCheckoutID(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "M1", byCheckout.MerchantRequestID)
	assert.Equal(t, StatusPending, byCheckout.Status)

	byMerchant, err := store.FindByMerchantID(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, byCheckout.ID, byMerchant.ID)

	_, err = store.FindByCheckoutID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStorage_ResolveOnce(t *testing.T) {
	store := newGormStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, pendingSession("C1", "M1")))

	receipt := "R123"
	resolved, err := store.Resolve(ctx, "C1", func(s *Session) error {
		s.Status = StatusCompleted
		s.ReceiptNumber = &receipt
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resolved.Status)

	called := false
	again, err := store.Resolve(ctx, "C1", func(s *Session) error {
		called = true
		s.Status = StatusFailed
		return nil
	})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.False(t, called)
	assert.Equal(t, StatusCompleted, again.Status)

	stored, err := store.FindByCheckoutID(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.ReceiptNumber)
	assert.Equal(t, "R123", *stored.ReceiptNumber)

	_, err = store.Resolve(ctx, "missing", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStorage_ConcurrentResolveAppliesOnce(t *testing.T) {
	store := newGormStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, pendingSession("C1", "M1")))

	const callbacks = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < callbacks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Resolve(ctx, "C1", func(s *Session) error {
				s.Status = StatusFailed
				return nil
			})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyResolved)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
}

func TestGormStorage_List(t *testing.T) {
	store := newGormStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, pendingSession("C1", "M1")))
	require.NoError(t, store.Create(ctx, pendingSession("C2", "M2")))
	_, err := store.Resolve(ctx, "C2", func(s *Session) error {
		s.Status = StatusFailed
		return nil
	})
	require.NoError(t, err)

	all, err := store.List(ctx, ListInput{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "C2", all[0].CheckoutRequestID)

	failed, err := store.List(ctx, ListInput{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "C2", failed[0].CheckoutRequestID)

	limited, err := store.List(ctx, ListInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
