package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
)

// Storage persists staff accounts.
type Storage interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id uint) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, in ListInput) ([]User, int64, error)
	Save(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uint) error
	CountActive(ctx context.Context, role Role) (int64, error)
}

type GormStorage struct {
	db *gorm.DB
}

var _ Storage = (*GormStorage)(nil)

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (g *GormStorage) Create(ctx context.Context, u *User) error {
	err := g.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	return err
}

func (g *GormStorage) Get(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := g.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (g *GormStorage) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := g.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (g *GormStorage) List(ctx context.Context, in ListInput) ([]User, int64, error) {
	q := g.db.WithContext(ctx).Model(&User{})
	if s := strings.TrimSpace(in.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []User
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((in.Page - 1) * in.Limit).
		Limit(in.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (g *GormStorage) Save(ctx context.Context, u *User) error {
	err := g.db.WithContext(ctx).Save(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	return err
}

func (g *GormStorage) Delete(ctx context.Context, id uint) error {
	res := g.db.WithContext(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStorage) CountActive(ctx context.Context, role Role) (int64, error) {
	var n int64
	q := g.db.WithContext(ctx).Model(&User{}).Where("is_active = ?", true)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	err := q.Count(&n).Error
	return n, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
