package api

import (
	"net/http"
	"strconv"

	"api_pos/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type authHandler struct {
	auth   *auth.Service
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *authHandler {
	return &authHandler{auth: svc, logger: logger}
}

func (h *authHandler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *authHandler) me(c *gin.Context) {
	u, err := h.auth.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *authHandler) listUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	users, total, err := h.auth.List(c.Request.Context(), auth.ListInput{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": users, "metadata": gin.H{"total": total, "page": page, "limit": limit}})
}

func (h *authHandler) createUser(c *gin.Context) {
	var in auth.CreateUserInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	u, err := h.auth.CreateUser(c.Request.Context(), principal(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *authHandler) updateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in auth.UpdateUserInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	u, err := h.auth.UpdateUser(c.Request.Context(), principal(c), id, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *authHandler) toggleStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := h.auth.ToggleStatus(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_active": u.IsActive})
}

func (h *authHandler) deleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.auth.Delete(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
