package api

import (
	"net/http"
	"strconv"

	"api_pos/internal/dashboard"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type dashboardHandler struct {
	dashboard *dashboard.Service
	logger    *zap.Logger
}

func NewDashboardHandler(svc *dashboard.Service, logger *zap.Logger) *dashboardHandler {
	return &dashboardHandler{dashboard: svc, logger: logger}
}

func (h *dashboardHandler) summary(c *gin.Context) {
	year, month, ok := yearMonth(c)
	if !ok {
		return
	}
	sum, err := h.dashboard.Summary(c.Request.Context(), principal(c).Role, year, month)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *dashboardHandler) chart(c *gin.Context) {
	year, month, ok := yearMonth(c)
	if !ok {
		return
	}
	chart, err := h.dashboard.Chart(c.Request.Context(), year, month)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chart)
}

func yearMonth(c *gin.Context) (int, int, bool) {
	var year, month int
	var err error
	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil || year < 2000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return 0, 0, false
		}
	}
	if v := c.Query("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return 0, 0, false
		}
	}
	return year, month, true
}
