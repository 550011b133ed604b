package staff

import (
	"context"
	"encoding/json"
	"testing"

	"api_pos/internal/auth"
	"api_pos/internal/codegen"
	"api_pos/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	svc  *Service
	dept *Department
	pos  *Position
}

func newFixture(t *testing.T) (*fixture, *auth.GormStorage) {
	t.Helper()
	db := testutil.OpenSQLite(t, &auth.User{}, &Department{}, &Position{}, &Employee{})
	svc := NewService(NewGormStorage(db), codegen.New(nil), zaptest.NewLogger(t))

	ctx := context.Background()
	dept, err := svc.SaveDepartment(ctx, 0, NamedInput{Name: "Kitchen"})
	require.NoError(t, err)
	pos, err := svc.SavePosition(ctx, 0, NamedInput{Name: "Cook", Description: "Line cook"})
	require.NoError(t, err)
	return &fixture{svc: svc, dept: dept, pos: pos}, auth.NewGormStorage(db)
}

func (f *fixture) input(first string) EmployeeInput {
	return EmployeeInput{
		FirstName:    first,
		LastName:     "Otieno",
		Contact:      "0712345678",
		Address:      "Nairobi",
		Email:        first + "@example.com",
		DepartmentID: f.dept.ID,
		PositionID:   f.pos.ID,
		DateHired:    "2024-03-01",
		Salary:       json.Number("25000.50"),
	}
}

func uintPtr(v uint) *uint { return &v }

func intPtr(v int) *int { return &v }

func TestCreateEmployee_AssignsSequentialCodes(t *testing.T) {
	f, _ := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateEmployee(ctx, f.input("amina"))
	require.NoError(t, err)
	second, err := f.svc.CreateEmployee(ctx, f.input("brian"))
	require.NoError(t, err)

	assert.Equal(t, "EMP0001", first.Code)
	assert.Equal(t, "EMP0002", second.Code)
	assert.Equal(t, StatusActive, first.Status)
	assert.Equal(t, "25000.5", first.Salary.String())
	assert.Equal(t, "2024-03-01", first.DateHired.Format("2006-01-02"))
	require.NotNil(t, first.Department)
	assert.Equal(t, "Kitchen", first.Department.Name)
	require.NotNil(t, first.Position)
	assert.Equal(t, "Cook", first.Position.Name)
	assert.Equal(t, "amina Otieno", first.FullName())
}

func TestCreateEmployee_Validation(t *testing.T) {
	f, _ := newFixture(t)
	ctx := context.Background()

	mutate := func(fn func(*EmployeeInput)) EmployeeInput {
		in := f.input("carol")
		fn(&in)
		return in
	}
	cases := map[string]EmployeeInput{
		"missing first name": mutate(func(in *EmployeeInput) { in.FirstName = "  " }),
		"missing contact":    mutate(func(in *EmployeeInput) { in.Contact = "" }),
		"bad email":          mutate(func(in *EmployeeInput) { in.Email = "not-an-email" }),
		"bad gender":         mutate(func(in *EmployeeInput) { in.Gender = "X" }),
		"bad dob":            mutate(func(in *EmployeeInput) { in.DOB = "01/02/1990" }),
		"missing hire date":  mutate(func(in *EmployeeInput) { in.DateHired = "" }),
		"missing department": mutate(func(in *EmployeeInput) { in.DepartmentID = 0 }),
		"negative salary":    mutate(func(in *EmployeeInput) { in.Salary = json.Number("-1") }),
		"sub-cent salary":    mutate(func(in *EmployeeInput) { in.Salary = json.Number("10.005") }),
		"bad status":         mutate(func(in *EmployeeInput) { in.Status = intPtr(3) }),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateEmployee(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	_, total, err := f.svc.Employees(ctx, ListInput{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateEmployee_References(t *testing.T) {
	f, users := newFixture(t)
	ctx := context.Background()

	in := f.input("dan")
	in.DepartmentID = 99
	_, err := f.svc.CreateEmployee(ctx, in)
	assert.ErrorIs(t, err, ErrReferenceMissing)

	in = f.input("dan")
	in.PositionID = 99
	_, err = f.svc.CreateEmployee(ctx, in)
	assert.ErrorIs(t, err, ErrReferenceMissing)

	in = f.input("dan")
	in.UserID = uintPtr(42)
	_, err = f.svc.CreateEmployee(ctx, in)
	assert.ErrorIs(t, err, ErrReferenceMissing)

	u := &auth.User{Username: "dan", PasswordHash: "x", Role: auth.RoleCashier, IsActive: true}
	require.NoError(t, users.Create(ctx, u))
	in.UserID = uintPtr(u.ID)
	linked, err := f.svc.CreateEmployee(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, linked.UserID)
	assert.Equal(t, u.ID, *linked.UserID)

	again := f.input("dan2")
	again.UserID = uintPtr(u.ID)
	_, err = f.svc.CreateEmployee(ctx, again)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateEmployee_KeepsCode(t *testing.T) {
	f, _ := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEmployee(ctx, f.input("eve"))
	require.NoError(t, err)

	pos, err := f.svc.SavePosition(ctx, 0, NamedInput{Name: "Supervisor"})
	require.NoError(t, err)
	in := f.input("eve")
	in.PositionID = pos.ID
	in.Salary = json.Number("40000")
	in.Status = intPtr(StatusInactive)
	updated, err := f.svc.UpdateEmployee(ctx, e.ID, in)
	require.NoError(t, err)

	assert.Equal(t, e.Code, updated.Code)
	assert.Equal(t, "Supervisor", updated.Position.Name)
	assert.Equal(t, "40000", updated.Salary.String())
	assert.Equal(t, StatusInactive, updated.Status)

	_, err = f.svc.UpdateEmployee(ctx, 999, f.input("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmployees_SearchAndPaging(t *testing.T) {
	f, _ := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"faith", "george", "grace"} {
		_, err := f.svc.CreateEmployee(ctx, f.input(name))
		require.NoError(t, err)
	}

	page, total, err := f.svc.Employees(ctx, ListInput{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)

	found, total, err := f.svc.Employees(ctx, ListInput{Search: "gr"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "grace", found[0].FirstName)
}

func TestDelete_GuardsReferencedRecords(t *testing.T) {
	f, _ := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEmployee(ctx, f.input("hana"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteDepartment(ctx, f.dept.ID), ErrInUse)
	assert.ErrorIs(t, f.svc.DeletePosition(ctx, f.pos.ID), ErrInUse)

	require.NoError(t, f.svc.DeleteEmployee(ctx, e.ID))
	assert.ErrorIs(t, f.svc.DeleteEmployee(ctx, e.ID), ErrNotFound)
	require.NoError(t, f.svc.DeleteDepartment(ctx, f.dept.ID))
	require.NoError(t, f.svc.DeletePosition(ctx, f.pos.ID))

	depts, err := f.svc.Departments(ctx)
	require.NoError(t, err)
	assert.Empty(t, depts)
}

func TestSaveDepartment(t *testing.T) {
	f, _ := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveDepartment(ctx, 0, NamedInput{Name: ""})
	assert.ErrorIs(t, err, ErrValidation)

	renamed, err := f.svc.SaveDepartment(ctx, f.dept.ID, NamedInput{Name: " Bar "})
	require.NoError(t, err)
	assert.Equal(t, f.dept.ID, renamed.ID)
	assert.Equal(t, "Bar", renamed.Name)

	_, err = f.svc.SaveDepartment(ctx, 999, NamedInput{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}
