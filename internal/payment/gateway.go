package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrGateway is returned when the payment provider cannot be reached or
// refuses a request.
var ErrGateway = errors.New("payment gateway error")

const (
	tokenPath = "/oauth/v1/generate"
	pushPath  = "/mpesa/stkpush/v1/processrequest"

	timestampLayout = "20060102150405"
	// TransactionTypePayBill is the paybill STK push flavour.
	TransactionTypePayBill = "CustomerPayBillOnline"
)

// eat is East Africa Time, the provider's clock for timestamps.
var eat = time.FixedZone("EAT", 3*60*60)

// Config carries the provider credentials and endpoints.
type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	PartyB          string
	TransactionType string
	Timeout         time.Duration
}

// PushRequest is one STK push for an already-normalized phone number.
type PushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
}

// PushResponse is the provider's answer to an STK push.
type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`

	Raw []byte `json:"-"`
}

// Accepted reports whether the provider queued the push.
func (r *PushResponse) Accepted() bool {
	return r.ResponseCode == "0" && r.MerchantRequestID != "" && r.CheckoutRequestID != ""
}

// Reason is the provider's explanation for a refused push.
func (r *PushResponse) Reason() string {
	switch {
	case r.ErrorMessage != "":
		return r.ErrorMessage
	case r.ResponseDescription != "":
		return r.ResponseDescription
	case r.CustomerMessage != "":
		return r.CustomerMessage
	default:
		return "unknown provider error"
	}
}

type stkPushBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// Gateway talks to the provider's OAuth and STK push endpoints.
type Gateway struct {
	cfg    Config
	client *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = TransactionTypePayBill
	}
	if cfg.PartyB == "" {
		cfg.PartyB = cfg.ShortCode
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Gateway{cfg: cfg, client: client, logger: logger, now: time.Now}
}

func (g *Gateway) Close() error {
	return g.client.Close()
}

// Token fetches a fresh OAuth access token.
func (g *Gateway) Token(ctx context.Context) (string, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret).
		SetQueryParam("grant_type", "client_credentials").
		Get(tokenPath)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrGateway, err)
	}
	if resp.IsError() {
		g.logger.Warn("token request rejected", zap.Int("status", resp.StatusCode()), zap.String("body", resp.String()))
		return "", fmt.Errorf("%w: token request returned %d", ErrGateway, resp.StatusCode())
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(resp.String()), &body); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrGateway, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", ErrGateway)
	}
	return body.AccessToken, nil
}

// Push sends an STK push. A non-nil error means the provider never gave a
// usable answer; a refused push comes back as a response with Accepted false.
func (g *Gateway) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	token, err := g.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := g.now().In(eat).Format(timestampLayout)
	body := stkPushBody{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   g.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            g.cfg.PartyB,
		PhoneNumber:       req.Phone,
		CallBackURL:       g.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(pushPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stk push request: %v", ErrGateway, err)
	}

	raw := []byte(resp.String())
	out := &PushResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.IsError() {
			return nil, fmt.Errorf("%w: stk push returned %d", ErrGateway, resp.StatusCode())
		}
		return nil, fmt.Errorf("%w: decode stk push response: %v", ErrGateway, err)
	}
	if resp.IsError() {
		g.logger.Warn("stk push rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("error_code", out.ErrorCode),
			zap.String("error_message", out.ErrorMessage),
		)
	}
	return out, nil
}

func (g *Gateway) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.cfg.ShortCode + g.cfg.PassKey + timestamp))
}
