package staff

import (
	"encoding/json"
	"time"

	"api_pos/internal/auth"

	"github.com/shopspring/decimal"
)

const (
	StatusInactive = 0
	StatusActive   = 1
)

// Department groups employees, e.g. Kitchen or Front of House.
type Department struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"date_added"`
	UpdatedAt   time.Time `json:"date_updated"`
}

// Position is an employee's job title.
type Position struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"date_added"`
	UpdatedAt   time.Time `json:"date_updated"`
}

// Employee is an HR record, optionally linked to a login account.
type Employee struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"size:100;uniqueIndex;not null" json:"code"`
	UserID       *uint           `gorm:"uniqueIndex" json:"user_id,omitempty"`
	User         *auth.User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	FirstName    string          `gorm:"size:100;not null" json:"firstname"`
	MiddleName   string          `gorm:"size:100" json:"middlename"`
	LastName     string          `gorm:"size:100;not null" json:"lastname"`
	Gender       string          `gorm:"size:1" json:"gender"`
	DOB          *time.Time      `gorm:"type:date" json:"dob,omitempty"`
	Contact      string          `gorm:"size:20;not null" json:"contact"`
	Address      string          `gorm:"type:text;not null" json:"address"`
	Email        string          `gorm:"size:254;not null" json:"email"`
	DepartmentID uint            `gorm:"index;not null" json:"department_id"`
	Department   *Department     `gorm:"foreignKey:DepartmentID;constraint:OnDelete:RESTRICT" json:"department,omitempty"`
	PositionID   uint            `gorm:"index;not null" json:"position_id"`
	Position     *Position       `gorm:"foreignKey:PositionID;constraint:OnDelete:RESTRICT" json:"position,omitempty"`
	DateHired    time.Time       `gorm:"type:date;not null" json:"date_hired"`
	Salary       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"salary"`
	Status       int             `gorm:"not null;default:1" json:"status"`
	CreatedAt    time.Time       `gorm:"index" json:"date_added"`
	UpdatedAt    time.Time       `json:"date_updated"`
}

// FullName joins first, middle and last names.
func (e Employee) FullName() string {
	if e.MiddleName == "" {
		return e.FirstName + " " + e.LastName
	}
	return e.FirstName + " " + e.MiddleName + " " + e.LastName
}

// NamedInput creates or renames a department or position.
type NamedInput struct {
	Name        string `json:"name" form:"name" validate:"required,max=100"`
	Description string `json:"description" form:"description"`
}

// EmployeeInput is the editable part of an employee. Dates are YYYY-MM-DD.
type EmployeeInput struct {
	UserID       *uint       `json:"user_id" form:"user_id"`
	FirstName    string      `json:"firstname" form:"firstname" validate:"required,max=100"`
	MiddleName   string      `json:"middlename" form:"middlename" validate:"max=100"`
	LastName     string      `json:"lastname" form:"lastname" validate:"required,max=100"`
	Gender       string      `json:"gender" form:"gender" validate:"omitempty,oneof=M F O"`
	DOB          string      `json:"dob" form:"dob" validate:"omitempty,datetime=2006-01-02"`
	Contact      string      `json:"contact" form:"contact" validate:"required,max=20"`
	Address      string      `json:"address" form:"address" validate:"required"`
	Email        string      `json:"email" form:"email" validate:"required,email,max=254"`
	DepartmentID uint        `json:"department_id" form:"department_id" validate:"required"`
	PositionID   uint        `json:"position_id" form:"position_id" validate:"required"`
	DateHired    string      `json:"date_hired" form:"date_hired" validate:"required,datetime=2006-01-02"`
	Salary       json.Number `json:"salary" form:"salary"`
	Status       *int        `json:"status" form:"status" validate:"omitempty,oneof=0 1"`
}

// ListInput pages through employees, optionally filtered by name, code or email.
type ListInput struct {
	Search string
	Page   int
	Limit  int
}
