package sales

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"api_pos/internal/codegen"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ErrDuplicateCode is returned by Insert when the sale code is already taken.
var ErrDuplicateCode = errors.New("duplicate sale code")

// Storage is the main interface for our sales storage layer.
type Storage interface {
	// WithinTx runs fn in a transaction: every write made through tx
	// commits together or not at all.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Read(ctx context.Context, id uint) (*Sale, error)
	List(ctx context.Context, in ListInput) ([]Summary, error)
	Delete(ctx context.Context, id uint) error
}

// Tx is the transactional view used while recording a sale.
type Tx interface {
	codegen.Source
	// MissingProducts returns the ids in ids that have no product row.
	MissingProducts(ctx context.Context, ids []uint) ([]uint, error)
	// Insert stores the header and its items, filling in their ids.
	Insert(ctx context.Context, sale *Sale) error
}

// LocalStorage provides an in-memory implementation for storing sales.
type LocalStorage struct {
	mu       sync.Mutex
	m        map[uint]*Sale
	products map[uint]bool
	nextID   uint
	nextItem uint
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage instantiates an empty LocalStorage that knows about the
// given product ids.
func NewLocalStorage(productIDs ...uint) *LocalStorage {
	l := &LocalStorage{
		m:        map[uint]*Sale{},
		products: map[uint]bool{},
	}
	for _, id := range productIDs {
		l.products[id] = true
	}
	return l
}

// Seed stores a sale as-is, bypassing code generation.
func (l *LocalStorage) Seed(sale *Sale) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	sale.ID = l.nextID
	l.m[sale.ID] = sale
}

func (l *LocalStorage) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &localTx{store: l}
	if err := fn(tx); err != nil {
		return err
	}
	for _, sale := range tx.staged {
		l.m[sale.ID] = sale
	}
	return nil
}

// Read retrieves a sale from the local storage by ID.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Read(_ context.Context, id uint) (*Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	cp.Items = append([]SaleItem(nil), s.Items...)
	return &cp, nil
}

func (l *LocalStorage) List(_ context.Context, in ListInput) ([]Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Summary, 0, len(l.m))
	for _, s := range l.m {
		if !in.From.IsZero() && s.CreatedAt.Before(in.From) {
			continue
		}
		if !in.To.IsZero() && !s.CreatedAt.Before(in.To) {
			continue
		}
		cp := *s
		cp.Items = nil
		out = append(out, Summary{Sale: cp, ItemCount: int64(len(s.Items))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (l *LocalStorage) Delete(_ context.Context, id uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[id]; !ok {
		return ErrNotFound
	}
	delete(l.m, id)
	return nil
}

// localTx works on the store while its mutex is held by WithinTx.
type localTx struct {
	store  *LocalStorage
	staged []*Sale
}

func (t *localTx) all() []*Sale {
	out := make([]*Sale, 0, len(t.store.m)+len(t.staged))
	for _, s := range t.store.m {
		out = append(out, s)
	}
	return append(out, t.staged...)
}

func (t *localTx) LastCode(_ context.Context, prefix string) (string, error) {
	var last *Sale
	for _, s := range t.all() {
		if strings.HasPrefix(s.Code, prefix) && (last == nil || s.ID > last.ID) {
			last = s
		}
	}
	if last == nil {
		return "", nil
	}
	return last.Code, nil
}

func (t *localTx) Exists(_ context.Context, code string) (bool, error) {
	for _, s := range t.all() {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *localTx) MissingProducts(_ context.Context, ids []uint) ([]uint, error) {
	var missing []uint
	for _, id := range ids {
		if !t.store.products[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (t *localTx) Insert(ctx context.Context, sale *Sale) error {
	if exists, _ := t.Exists(ctx, sale.Code); exists {
		return ErrDuplicateCode
	}
	t.store.nextID++
	sale.ID = t.store.nextID
	now := time.Now()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now
	for i := range sale.Items {
		t.store.nextItem++
		sale.Items[i].ID = t.store.nextItem
		sale.Items[i].SaleID = sale.ID
	}
	cp := *sale
	cp.Items = append([]SaleItem(nil), sale.Items...)
	t.staged = append(t.staged, &cp)
	return nil
}
