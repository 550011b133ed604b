package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"api_pos/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

// saleRequest accepts the till's form post (product_id[] etc.) or the same
// fields as JSON, with amounts as numbers or numeric strings.
type saleRequest struct {
	SubTotal       json.Number   `json:"sub_total" form:"sub_total"`
	Tax            json.Number   `json:"tax" form:"tax"`
	TaxAmount      json.Number   `json:"tax_amount" form:"tax_amount"`
	GrandTotal     json.Number   `json:"grand_total" form:"grand_total"`
	TenderedAmount json.Number   `json:"tendered_amount" form:"tendered_amount"`
	AmountChange   json.Number   `json:"amount_change" form:"amount_change"`
	ProductIDs     []json.Number `json:"product_id" form:"product_id[]"`
	Qty            []json.Number `json:"qty" form:"qty[]"`
	Price          []json.Number `json:"price" form:"price[]"`
}

func (r saleRequest) input() sales.RecordInput {
	strs := func(in []json.Number) []string {
		out := make([]string, len(in))
		for i, v := range in {
			out[i] = v.String()
		}
		return out
	}
	return sales.RecordInput{
		SubTotal:       r.SubTotal.String(),
		Tax:            r.Tax.String(),
		TaxAmount:      r.TaxAmount.String(),
		GrandTotal:     r.GrandTotal.String(),
		TenderedAmount: r.TenderedAmount.String(),
		AmountChange:   r.AmountChange.String(),
		ProductIDs:     strs(r.ProductIDs),
		Qty:            strs(r.Qty),
		Price:          strs(r.Price),
	}
}

// handleCreateSale handles the POST /sales endpoint.
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req saleRequest
	if err := ctx.ShouldBind(&req); err != nil {
		h.logger.Warn("failed to bind sale request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "failed", "msg": "invalid request payload"})
		return
	}

	var cashierID *uint
	if p := principal(ctx); p.UserID != 0 {
		cashierID = &p.UserID
	}

	res, err := h.salesService.Record(ctx.Request.Context(), cashierID, req.input())
	if err != nil {
		writeSaveFailure(ctx, h.logger, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"status": "success", "sale_id": res.SaleID, "code": res.Code})
}

func (h *salesHandler) handleListSales(ctx *gin.Context) {
	var in sales.ListInput
	if from := ctx.Query("from"); from != "" {
		t, err := time.ParseInLocation(time.DateOnly, from, time.Local)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		in.From = t
	}
	if to := ctx.Query("to"); to != "" {
		t, err := time.ParseInLocation(time.DateOnly, to, time.Local)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		in.To = t.AddDate(0, 0, 1)
	}

	results, err := h.salesService.List(ctx.Request.Context(), in)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": results, "metadata": gin.H{"quantity": len(results)}})
}

// handleGetSale returns the receipt view of a sale.
func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}
	sale, err := h.salesService.Get(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

func (h *salesHandler) handleDeleteSale(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		return
	}
	if err := h.salesService.Delete(ctx.Request.Context(), id); err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

// idParam parses the :id path parameter, answering 400 when it is not a
// positive integer.
func idParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 0)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
