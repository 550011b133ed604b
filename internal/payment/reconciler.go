package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Ack is the body the provider expects back from every callback.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var accepted = Ack{ResultCode: 0, ResultDesc: "Accepted"}

// MetadataName is a callback metadata item we act on. Other names are ignored.
type MetadataName string

const (
	MetaReceiptNumber   MetadataName = "MpesaReceiptNumber"
	MetaAmount          MetadataName = "Amount"
	MetaTransactionDate MetadataName = "TransactionDate"
)

type callbackEnvelope struct {
	Body struct {
		StkCallback stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        json.Number `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []struct {
			Name  string          `json:"Name"`
			Value json.RawMessage `json:"Value"`
		} `json:"Item"`
	} `json:"CallbackMetadata"`
}

// metadata returns the known items as text, whatever JSON type carried them.
func (c *stkCallback) metadata() map[MetadataName]string {
	out := map[MetadataName]string{}
	for _, item := range c.CallbackMetadata.Item {
		name := MetadataName(item.Name)
		switch name {
		case MetaReceiptNumber, MetaAmount, MetaTransactionDate:
		default:
			continue
		}
		raw := strings.TrimSpace(string(item.Value))
		if raw == "" || raw == "null" {
			continue
		}
		var s string
		if json.Unmarshal(item.Value, &s) == nil {
			raw = s
		}
		out[name] = raw
	}
	return out
}

// HandleCallback applies a provider callback to its session. It never fails:
// bad payloads, unknown ids and repeats are logged and acknowledged.
func (s *Service) HandleCallback(ctx context.Context, raw []byte) Ack {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("unparseable payment callback", zap.Error(err), zap.ByteString("body", raw))
		return accepted
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		s.logger.Warn("payment callback without checkout request id", zap.ByteString("body", raw))
		return accepted
	}
	logger := s.logger.With(
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.String("merchant_request_id", cb.MerchantRequestID),
		zap.String("result_code", cb.ResultCode.String()),
	)

	session, err := s.storage.Resolve(ctx, cb.CheckoutRequestID, func(session *Session) error {
		audit := ParseAudit(session.RawResponse)
		audit.Set("ResultCode", cb.ResultCode)
		audit.Set("ResultDesc", cb.ResultDesc)

		if cb.ResultCode.String() == "0" {
			session.Status = StatusCompleted
			s.applyMetadata(logger, session, cb.metadata())
			audit.Set("callback", json.RawMessage(raw))
		} else {
			session.Status = StatusFailed
		}

		encoded, err := audit.MarshalJSON()
		if err != nil {
			return err
		}
		session.RawResponse = datatypes.JSON(encoded)
		return nil
	})

	switch {
	case errors.Is(err, ErrNotFound):
		logger.Warn("payment callback for unknown session")
	case errors.Is(err, ErrAlreadyResolved):
		logger.Info("payment session already resolved", zap.String("status", string(session.Status)))
	case err != nil:
		logger.Error("failed to apply payment callback", zap.Error(err))
	default:
		logger.Info("payment session resolved", zap.String("status", string(session.Status)))
		if s.publisher != nil {
			s.publisher.Publish(session.CheckoutRequestID, snapshot(session))
		}
	}
	return accepted
}

func (s *Service) applyMetadata(logger *zap.Logger, session *Session, meta map[MetadataName]string) {
	if receipt, ok := meta[MetaReceiptNumber]; ok {
		session.ReceiptNumber = &receipt
	}
	if v, ok := meta[MetaAmount]; ok {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			logger.Warn("invalid callback amount", zap.String("amount", v), zap.Error(err))
		} else {
			session.Amount = amount
		}
	}
	if v, ok := meta[MetaTransactionDate]; ok {
		date, err := time.ParseInLocation(timestampLayout, v, eat)
		if err != nil {
			logger.Warn("invalid callback transaction date", zap.String("transaction_date", v), zap.Error(err))
		} else {
			session.TransactionDate = &date
		}
	}
}
