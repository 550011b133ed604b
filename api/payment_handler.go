package api

import (
	"io"
	"net/http"
	"strconv"

	"api_pos/internal/payment"
	"api_pos/internal/realtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxCallbackBody = 1 << 20

type paymentHandler struct {
	payments *payment.Service
	hub      *realtime.Hub
	logger   *zap.Logger
}

func NewPaymentHandler(svc *payment.Service, hub *realtime.Hub, logger *zap.Logger) *paymentHandler {
	return &paymentHandler{payments: svc, hub: hub, logger: logger}
}

func (h *paymentHandler) stkPush(c *gin.Context) {
	var in payment.InitiateInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request payload"})
		return
	}

	session, err := h.payments.Initiate(c.Request.Context(), in)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("stk push failed", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		}
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"message":             "STK push sent. Check your phone to complete payment.",
		"checkout_request_id": session.CheckoutRequestID,
		"merchant_request_id": session.MerchantRequestID,
	})
}

// callback always answers 200 with the provider's acknowledgement body.
func (h *paymentHandler) callback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("failed to read payment callback body", zap.Error(err))
	}
	c.JSON(http.StatusOK, h.payments.HandleCallback(c.Request.Context(), raw))
}

func (h *paymentHandler) status(c *gin.Context) {
	checkoutID := c.Param("checkoutRequestID")
	result, err := h.payments.Status(c.Request.Context(), checkoutID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "could not load payment status"})
		return
	}
	if !result.Found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *paymentHandler) list(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	sessions, err := h.payments.List(c.Request.Context(), payment.ListInput{
		Status: payment.Status(c.Query("status")),
		Phone:  c.Query("phone"),
		Limit:  limit,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": sessions})
}

func (h *paymentHandler) websocket(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
