package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"api_pos/internal/codegen"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrValidation is returned when staff input is malformed.
	ErrValidation = errors.New("invalid staff input")
	// ErrReferenceMissing is returned when an employee points at an unknown
	// department, position or user account.
	ErrReferenceMissing = errors.New("referenced record does not exist")
)

// EmployeeCodes is the template behind EMP0001 style employee codes.
var EmployeeCodes = codegen.Template{Prefix: "EMP", Width: 4, Separator: "-", SuffixLen: 2}

const (
	maxInsertAttempts = 3
	defaultPageSize   = 10
	dateLayout        = "2006-01-02"
)

// Service manages departments, positions and employees.
type Service struct {
	storage  Storage
	codes    *codegen.Generator
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(storage Storage, codes *codegen.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if codes == nil {
		codes = codegen.New(nil)
	}
	return &Service{
		storage:  storage,
		codes:    codes,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (s *Service) Departments(ctx context.Context) ([]Department, error) {
	return s.storage.Departments(ctx)
}

// SaveDepartment creates a department when id is zero and renames it otherwise.
func (s *Service) SaveDepartment(ctx context.Context, id uint, in NamedInput) (*Department, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	d := &Department{}
	if id != 0 {
		var err error
		if d, err = s.storage.Department(ctx, id); err != nil {
			return nil, err
		}
	}
	d.Name = strings.TrimSpace(in.Name)
	d.Description = strings.TrimSpace(in.Description)
	if err := s.storage.SaveDepartment(ctx, d); err != nil {
		s.logger.Error("failed to save department", zap.Uint("department_id", id), zap.Error(err))
		return nil, err
	}
	return d, nil
}

// DeleteDepartment fails with ErrInUse while employees belong to it.
func (s *Service) DeleteDepartment(ctx context.Context, id uint) error {
	return s.logDelete("department", id, s.storage.DeleteDepartment(ctx, id))
}

func (s *Service) Positions(ctx context.Context) ([]Position, error) {
	return s.storage.Positions(ctx)
}

func (s *Service) SavePosition(ctx context.Context, id uint, in NamedInput) (*Position, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	p := &Position{}
	if id != 0 {
		var err error
		if p, err = s.storage.Position(ctx, id); err != nil {
			return nil, err
		}
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	if err := s.storage.SavePosition(ctx, p); err != nil {
		s.logger.Error("failed to save position", zap.Uint("position_id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePosition(ctx context.Context, id uint) error {
	return s.logDelete("position", id, s.storage.DeletePosition(ctx, id))
}

// Employees returns one page of employees and the total matching count.
func (s *Service) Employees(ctx context.Context, in ListInput) ([]Employee, int64, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 {
		in.Limit = defaultPageSize
	}
	return s.storage.Employees(ctx, in)
}

func (s *Service) Employee(ctx context.Context, id uint) (*Employee, error) {
	return s.storage.Employee(ctx, id)
}

// CreateEmployee stores a new employee under a freshly generated code.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	draft, err := s.buildEmployee(in)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		e := *draft
		err = s.codes.Do(ctx, EmployeeCodes.Prefix, func(ctx context.Context) error {
			return s.storage.WithinTx(ctx, func(tx Tx) error {
				if err := checkReferences(ctx, tx, &e); err != nil {
					return err
				}
				code, err := s.codes.Next(ctx, EmployeeCodes, tx)
				if err != nil {
					return err
				}
				e.Code = code
				return tx.InsertEmployee(ctx, &e)
			})
		})
		if errors.Is(err, ErrDuplicate) && attempt < maxInsertAttempts {
			s.logger.Warn("employee code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrReferenceMissing) && !errors.Is(err, ErrDuplicate) {
				s.logger.Error("failed to create employee", zap.String("name", draft.FullName()), zap.Error(err))
			}
			return nil, err
		}
		s.logger.Info("employee created", zap.Uint("employee_id", e.ID), zap.String("code", e.Code))
		return s.storage.Employee(ctx, e.ID)
	}
}

// UpdateEmployee changes an employee's details, keeping the code.
func (s *Service) UpdateEmployee(ctx context.Context, id uint, in EmployeeInput) (*Employee, error) {
	draft, err := s.buildEmployee(in)
	if err != nil {
		return nil, err
	}
	current, err := s.storage.Employee(ctx, id)
	if err != nil {
		return nil, err
	}
	draft.ID = current.ID
	draft.Code = current.Code

	err = s.storage.WithinTx(ctx, func(tx Tx) error {
		if err := checkReferences(ctx, tx, draft); err != nil {
			return err
		}
		return tx.UpdateEmployee(ctx, draft)
	})
	if err != nil {
		if !errors.Is(err, ErrReferenceMissing) && !errors.Is(err, ErrDuplicate) {
			s.logger.Error("failed to update employee", zap.Uint("employee_id", id), zap.Error(err))
		}
		return nil, err
	}
	return s.storage.Employee(ctx, id)
}

func (s *Service) DeleteEmployee(ctx context.Context, id uint) error {
	return s.logDelete("employee", id, s.storage.DeleteEmployee(ctx, id))
}

func (s *Service) logDelete(kind string, id uint, err error) error {
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInUse) {
			s.logger.Error("failed to delete "+kind, zap.Uint("id", id), zap.Error(err))
		}
		return err
	}
	s.logger.Info(kind+" deleted", zap.Uint("id", id))
	return nil
}

func checkReferences(ctx context.Context, tx Tx, e *Employee) error {
	m, err := tx.References(ctx, e)
	if err != nil {
		return err
	}
	switch {
	case m.Department:
		return fmt.Errorf("%w: department %d", ErrReferenceMissing, e.DepartmentID)
	case m.Position:
		return fmt.Errorf("%w: position %d", ErrReferenceMissing, e.PositionID)
	case m.User:
		return fmt.Errorf("%w: user %d", ErrReferenceMissing, *e.UserID)
	case m.UserLinked:
		return fmt.Errorf("%w: user %d already belongs to another employee", ErrDuplicate, *e.UserID)
	}
	return nil
}

// check runs the struct's validate tags and reports the failing fields.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
}

func (s *Service) buildEmployee(in EmployeeInput) (*Employee, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Contact = strings.TrimSpace(in.Contact)
	in.Address = strings.TrimSpace(in.Address)
	in.Email = strings.TrimSpace(in.Email)
	in.Gender = strings.ToUpper(strings.TrimSpace(in.Gender))
	if err := s.check(&in); err != nil {
		return nil, err
	}

	hired, err := time.Parse(dateLayout, in.DateHired)
	if err != nil {
		return nil, fmt.Errorf("%w: date_hired must be YYYY-MM-DD", ErrValidation)
	}
	var dob *time.Time
	if in.DOB != "" {
		d, err := time.Parse(dateLayout, in.DOB)
		if err != nil {
			return nil, fmt.Errorf("%w: dob must be YYYY-MM-DD", ErrValidation)
		}
		dob = &d
	}

	salary := decimal.Zero
	if raw := strings.TrimSpace(in.Salary.String()); raw != "" {
		if salary, err = decimal.NewFromString(raw); err != nil || salary.IsNegative() {
			return nil, fmt.Errorf("%w: salary must be a non-negative number", ErrValidation)
		}
		if !salary.Equal(salary.Truncate(2)) {
			return nil, fmt.Errorf("%w: salary allows at most 2 decimal places", ErrValidation)
		}
	}

	status := StatusActive
	if in.Status != nil {
		status = *in.Status
	}

	return &Employee{
		UserID:       in.UserID,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		Gender:       in.Gender,
		DOB:          dob,
		Contact:      in.Contact,
		Address:      in.Address,
		Email:        in.Email,
		DepartmentID: in.DepartmentID,
		PositionID:   in.PositionID,
		DateHired:    hired,
		Salary:       salary,
		Status:       status,
	}, nil
}
