package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"api_pos/internal/auth"
	"api_pos/internal/codegen"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a department, position or employee does not exist.
	ErrNotFound = errors.New("staff record not found")
	// ErrDuplicate is returned when an employee code or linked account is already taken.
	ErrDuplicate = errors.New("duplicate staff record")
	// ErrInUse is returned when a department or position still has employees.
	ErrInUse = errors.New("staff record still has employees")
)

// Storage persists the staff directory.
type Storage interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Departments(ctx context.Context) ([]Department, error)
	Department(ctx context.Context, id uint) (*Department, error)
	SaveDepartment(ctx context.Context, d *Department) error
	DeleteDepartment(ctx context.Context, id uint) error
	Positions(ctx context.Context) ([]Position, error)
	Position(ctx context.Context, id uint) (*Position, error)
	SavePosition(ctx context.Context, p *Position) error
	DeletePosition(ctx context.Context, id uint) error
	Employees(ctx context.Context, in ListInput) ([]Employee, int64, error)
	Employee(ctx context.Context, id uint) (*Employee, error)
	DeleteEmployee(ctx context.Context, id uint) error
}

// Tx is the transactional view used when writing an employee.
type Tx interface {
	codegen.Source
	// References reports which of the employee's references are missing
	// and whether the linked account already belongs to another employee.
	References(ctx context.Context, e *Employee) (Missing, error)
	InsertEmployee(ctx context.Context, e *Employee) error
	UpdateEmployee(ctx context.Context, e *Employee) error
}

// Missing lists broken references of an employee.
type Missing struct {
	Department bool
	Position   bool
	User       bool
	UserLinked bool
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

func (g *GormStorage) Departments(ctx context.Context) ([]Department, error) {
	var out []Department
	if err := g.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (g *GormStorage) Department(ctx context.Context, id uint) (*Department, error) {
	var d Department
	if err := g.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (g *GormStorage) SaveDepartment(ctx context.Context, d *Department) error {
	return translate(g.db.WithContext(ctx).Save(d).Error)
}

func (g *GormStorage) DeleteDepartment(ctx context.Context, id uint) error {
	return deleteByID(g.db.WithContext(ctx), &Department{}, id)
}

func (g *GormStorage) Positions(ctx context.Context) ([]Position, error) {
	var out []Position
	if err := g.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (g *GormStorage) Position(ctx context.Context, id uint) (*Position, error) {
	var p Position
	if err := g.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (g *GormStorage) SavePosition(ctx context.Context, p *Position) error {
	return translate(g.db.WithContext(ctx).Save(p).Error)
}

func (g *GormStorage) DeletePosition(ctx context.Context, id uint) error {
	return deleteByID(g.db.WithContext(ctx), &Position{}, id)
}

// Employees returns one page, newest hires on record first.
func (g *GormStorage) Employees(ctx context.Context, in ListInput) ([]Employee, int64, error) {
	q := g.db.WithContext(ctx).Model(&Employee{})
	if s := strings.TrimSpace(in.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("code LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	var out []Employee
	err := q.Preload("Department").Preload("Position").
		Order("created_at DESC").Order("id DESC").
		Offset((in.Page - 1) * in.Limit).
		Limit(in.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	return out, total, nil
}

func (g *GormStorage) Employee(ctx context.Context, id uint) (*Employee, error) {
	var e Employee
	err := g.db.WithContext(ctx).Preload("Department").Preload("Position").First(&e, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (g *GormStorage) DeleteEmployee(ctx context.Context, id uint) error {
	return deleteByID(g.db.WithContext(ctx), &Employee{}, id)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LastCode(ctx context.Context, prefix string) (string, error) {
	var e Employee
	err := t.db.WithContext(ctx).Select("code").
		Where("code LIKE ?", prefix+"%").
		Order("id DESC").
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return e.Code, err
}

func (t *gormTx) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&Employee{}).Where("code = ?", code).Count(&n).Error
	return n > 0, err
}

func (t *gormTx) References(ctx context.Context, e *Employee) (Missing, error) {
	var m Missing
	db := t.db.WithContext(ctx)
	count := func(model any, where string, args ...any) (int64, error) {
		var n int64
		err := db.Model(model).Where(where, args...).Count(&n).Error
		return n, err
	}

	n, err := count(&Department{}, "id = ?", e.DepartmentID)
	if err != nil {
		return m, err
	}
	m.Department = n == 0
	if n, err = count(&Position{}, "id = ?", e.PositionID); err != nil {
		return m, err
	}
	m.Position = n == 0

	if e.UserID != nil {
		if n, err = count(&auth.User{}, "id = ?", *e.UserID); err != nil {
			return m, err
		}
		m.User = n == 0
		if n, err = count(&Employee{}, "user_id = ? AND id <> ?", *e.UserID, e.ID); err != nil {
			return m, err
		}
		m.UserLinked = n > 0
	}
	return m, nil
}

func (t *gormTx) InsertEmployee(ctx context.Context, e *Employee) error {
	return translate(t.db.WithContext(ctx).Omit("User", "Department", "Position").Create(e).Error)
}

// UpdateEmployee writes every editable column; the code never changes.
func (t *gormTx) UpdateEmployee(ctx context.Context, e *Employee) error {
	res := t.db.WithContext(ctx).Model(&Employee{}).Where("id = ?", e.ID).Updates(map[string]any{
		"user_id":       e.UserID,
		"first_name":    e.FirstName,
		"middle_name":   e.MiddleName,
		"last_name":     e.LastName,
		"gender":        e.Gender,
		"dob":           e.DOB,
		"contact":       e.Contact,
		"address":       e.Address,
		"email":         e.Email,
		"department_id": e.DepartmentID,
		"position_id":   e.PositionID,
		"date_hired":    e.DateHired,
		"salary":        e.Salary,
		"status":        e.Status,
	})
	return translate(res.Error)
}

func deleteByID(db *gorm.DB, model any, id uint) error {
	res := db.Delete(model, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrInUse
	default:
		return fmt.Errorf("staff storage: %w", err)
	}
}
