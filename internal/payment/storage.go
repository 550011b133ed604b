package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no session matches the request id.
	ErrNotFound = errors.New("payment session not found")
	// ErrAlreadyResolved is returned by Resolve when the session already left Pending.
	ErrAlreadyResolved = errors.New("payment session already resolved")
	// ErrDuplicate is returned when a request id is stored twice.
	ErrDuplicate = errors.New("payment session already exists")
)

// Storage persists payment sessions.
type Storage interface {
	Create(ctx context.Context, s *Session) error
	FindByCheckoutID(ctx context.Context, checkoutID string) (*Session, error)
	FindByMerchantID(ctx context.Context, merchantID string) (*Session, error)
	// Resolve loads the Pending session for checkoutID, lets fn set its
	// terminal state and writes it only if it is still Pending. A session
	// that already left Pending yields ErrAlreadyResolved and fn is not called.
	Resolve(ctx context.Context, checkoutID string, fn func(s *Session) error) (*Session, error)
	List(ctx context.Context, in ListInput) ([]Session, error)
}

// LocalStorage keeps sessions in memory.
type LocalStorage struct {
	mu     sync.Mutex
	m      map[string]*Session
	nextID uint
}

var _ Storage = (*LocalStorage)(nil)

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{m: map[string]*Session{}}
}

func (l *LocalStorage) Create(_ context.Context, s *Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.m {
		if existing.CheckoutRequestID == s.CheckoutRequestID || existing.MerchantRequestID == s.MerchantRequestID {
			return ErrDuplicate
		}
	}
	l.nextID++
	s.ID = l.nextID
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	cp := *s
	l.m[s.CheckoutRequestID] = &cp
	return nil
}

func (l *LocalStorage) FindByCheckoutID(_ context.Context, checkoutID string) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.m[checkoutID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (l *LocalStorage) FindByMerchantID(_ context.Context, merchantID string) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.m {
		if s.MerchantRequestID == merchantID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (l *LocalStorage) Resolve(_ context.Context, checkoutID string, fn func(s *Session) error) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.m[checkoutID]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Status != StatusPending {
		cp := *current
		return &cp, ErrAlreadyResolved
	}

	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	l.m[checkoutID] = &next
	cp := next
	return &cp, nil
}

func (l *LocalStorage) List(_ context.Context, in ListInput) ([]Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Session, 0, len(l.m))
	for _, s := range l.m {
		if in.Status != "" && s.Status != in.Status {
			continue
		}
		if in.Phone != "" && s.PhoneNumber != in.Phone {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if in.Limit > 0 && len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}
