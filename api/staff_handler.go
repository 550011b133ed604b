package api

import (
	"net/http"
	"strconv"

	"api_pos/internal/staff"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type staffHandler struct {
	staff  *staff.Service
	logger *zap.Logger
}

func NewStaffHandler(svc *staff.Service, logger *zap.Logger) *staffHandler {
	return &staffHandler{staff: svc, logger: logger}
}

// optionalID reads :id when the route has one; POST routes save with id zero.
func optionalID(c *gin.Context) (uint, bool) {
	if c.Param("id") == "" {
		return 0, true
	}
	return idParam(c)
}

func (h *staffHandler) listDepartments(c *gin.Context) {
	depts, err := h.staff.Departments(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": depts})
}

// saveDepartment serves both POST /departments and PUT /departments/:id.
func (h *staffHandler) saveDepartment(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	var in staff.NamedInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}
	d, err := h.staff.SaveDepartment(c.Request.Context(), id, in)
	if err != nil {
		writeSaveFailure(c, h.logger, err)
		return
	}
	c.JSON(savedStatus(id), gin.H{"status": "success", "department": d})
}

func (h *staffHandler) deleteDepartment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.staff.DeleteDepartment(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *staffHandler) listPositions(c *gin.Context) {
	positions, err := h.staff.Positions(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": positions})
}

func (h *staffHandler) savePosition(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	var in staff.NamedInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}
	p, err := h.staff.SavePosition(c.Request.Context(), id, in)
	if err != nil {
		writeSaveFailure(c, h.logger, err)
		return
	}
	c.JSON(savedStatus(id), gin.H{"status": "success", "position": p})
}

func (h *staffHandler) deletePosition(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.staff.DeletePosition(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *staffHandler) listEmployees(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	employees, total, err := h.staff.Employees(c.Request.Context(), staff.ListInput{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": employees, "metadata": gin.H{"total": total, "page": page, "limit": limit}})
}

func (h *staffHandler) getEmployee(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	e, err := h.staff.Employee(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// saveEmployee serves both POST /employees and PUT /employees/:id.
func (h *staffHandler) saveEmployee(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	var in staff.EmployeeInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}

	var (
		e   *staff.Employee
		err error
	)
	if id == 0 {
		e, err = h.staff.CreateEmployee(c.Request.Context(), in)
	} else {
		e, err = h.staff.UpdateEmployee(c.Request.Context(), id, in)
	}
	if err != nil {
		writeSaveFailure(c, h.logger, err)
		return
	}
	c.JSON(savedStatus(id), gin.H{"status": "success", "employee": e})
}

func (h *staffHandler) deleteEmployee(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.staff.DeleteEmployee(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func savedStatus(id uint) int {
	if id == 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}
