package api

import (
	"net/http"

	"api_pos/internal/catalog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type catalogHandler struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewCatalogHandler(svc *catalog.Service, logger *zap.Logger) *catalogHandler {
	return &catalogHandler{catalog: svc, logger: logger}
}

func (h *catalogHandler) listCategories(c *gin.Context) {
	cats, err := h.catalog.Categories(c.Request.Context(), c.Query("active") == "1")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": cats})
}

func (h *catalogHandler) getCategory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	cat, err := h.catalog.Category(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// saveCategory serves both POST /categories and PUT /categories/:id.
func (h *catalogHandler) saveCategory(c *gin.Context) {
	var id uint
	if c.Param("id") != "" {
		var ok bool
		if id, ok = idParam(c); !ok {
			return
		}
	}
	var in catalog.CategoryInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}
	cat, err := h.catalog.SaveCategory(c.Request.Context(), id, in)
	if err != nil {
		writeSaveFailure(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"status": "success", "category": cat})
}

func (h *catalogHandler) deleteCategory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// listProducts returns the catalog; ?active=1 gives the POS picker list.
func (h *catalogHandler) listProducts(c *gin.Context) {
	products, err := h.catalog.Products(c.Request.Context(), c.Query("active") == "1")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": products})
}

func (h *catalogHandler) getProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := h.catalog.Product(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *catalogHandler) createProduct(c *gin.Context) {
	var in catalog.ProductInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		writeSaveFailure(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "product": p})
}

func (h *catalogHandler) updateProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in catalog.ProductInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}
	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, in)
	if err != nil {
		writeSaveFailure(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "product": p})
}

func (h *catalogHandler) deleteProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
