package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeProvider mimics the OAuth and STK push endpoints.
type fakeProvider struct {
	mu        sync.Mutex
	tokenCode int
	pushCode  int
	pushReply map[string]any
	lastPush  map[string]any
	lastAuth  string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		tokenCode: http.StatusOK,
		pushCode:  http.StatusOK,
		pushReply: map[string]any{
			"MerchantRequestID":   "M1",
			"CheckoutRequestID":   "C1",
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		},
	}
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case tokenPath:
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" || r.URL.Query().Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(f.tokenCode)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123", "expires_in": "3599"})
	case pushPath:
		f.lastAuth = r.Header.Get("Authorization")
		f.lastPush = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&f.lastPush)
		w.WriteHeader(f.pushCode)
		_ = json.NewEncoder(w).Encode(f.pushReply)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeProvider) set(fn func(f *fakeProvider)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeProvider) lastRequest() (string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth, f.lastPush
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		PassKey:        "passkey",
		CallbackURL:    "https://pos.example.com/mpesa/callback",
		Timeout:        2 * time.Second,
	}
}

func newTestGateway(t *testing.T, provider *fakeProvider) *Gateway {
	t.Helper()
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)

	g := NewGateway(testConfig(srv.URL), zaptest.NewLogger(t))
	g.now = func() time.Time { return time.Date(2025, time.January, 2, 7, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGateway_Token(t *testing.T) {
	provider := newFakeProvider()
	g := newTestGateway(t, provider)

	token, err := g.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	provider.set(func(f *fakeProvider) { f.tokenCode = http.StatusInternalServerError })
	_, err = g.Token(context.Background())
	assert.ErrorIs(t, err, ErrGateway)
}

func TestGateway_PushBody(t *testing.T) {
	provider := newFakeProvider()
	g := newTestGateway(t, provider)

	resp, err := g.Push(context.Background(), PushRequest{
		Phone:            "254712345678",
		Amount:           100,
		AccountReference: "ORDER1",
		Description:      "Lunch",
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "C1", resp.CheckoutRequestID)
	assert.NotEmpty(t, resp.Raw)

	auth, body := provider.lastRequest()
	assert.Equal(t, "Bearer tok-123", auth)
	// 07:04:05 UTC is 10:04:05 in Nairobi.
	assert.Equal(t, "20250102100405", body["Timestamp"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379passkey20250102100405")), body["Password"])
	assert.Equal(t, "174379", body["BusinessShortCode"])
	assert.Equal(t, TransactionTypePayBill, body["TransactionType"])
	assert.EqualValues(t, 100, body["Amount"])
	assert.Equal(t, "254712345678", body["PartyA"])
	assert.Equal(t, "174379", body["PartyB"])
	assert.Equal(t, "254712345678", body["PhoneNumber"])
	assert.Equal(t, "https://pos.example.com/mpesa/callback", body["CallBackURL"])
	assert.Equal(t, "ORDER1", body["AccountReference"])
	assert.Equal(t, "Lunch", body["TransactionDesc"])
}

func TestGateway_PushRejected(t *testing.T) {
	provider := newFakeProvider()
	provider.pushCode = http.StatusBadRequest
	provider.pushReply = map[string]any{
		"requestId":    "abc",
		"errorCode":    "400.002.02",
		"errorMessage": "Bad Request - Invalid PhoneNumber",
	}
	g := newTestGateway(t, provider)

	resp, err := g.Push(context.Background(), PushRequest{Phone: "254700000000", Amount: 1})
	require.NoError(t, err)
	assert.False(t, resp.Accepted())
	assert.Equal(t, "Bad Request - Invalid PhoneNumber", resp.Reason())
}

func TestGateway_Unreachable(t *testing.T) {
	g := NewGateway(testConfig("http://127.0.0.1:1"), zaptest.NewLogger(t))
	defer g.Close()

	_, err := g.Push(context.Background(), PushRequest{Phone: "254700000000", Amount: 1})
	assert.ErrorIs(t, err, ErrGateway)
}

func TestGateway_TimeoutIsGatewayError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	g := NewGateway(cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = g.Close() })

	start := time.Now()
	_, err := g.Push(context.Background(), PushRequest{Phone: "254700000000", Amount: 1})
	assert.ErrorIs(t, err, ErrGateway)
	assert.Less(t, time.Since(start), time.Second, "the call is bounded by the configured timeout")

	storage := NewLocalStorage()
	svc := NewService(storage, g, zaptest.NewLogger(t))
	_, err = svc.Initiate(context.Background(), InitiateInput{Phone: "0712345678", Amount: "100"})
	assert.ErrorIs(t, err, ErrGateway)

	all, err := storage.List(context.Background(), ListInput{})
	require.NoError(t, err)
	assert.Empty(t, all, "a timed out push stores no session")
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":       "254712345678",
		"+254712345678":    "254712345678",
		"254712345678":     "254712345678",
		"712345678":        "254712345678",
		"0712 345-678":     "254712345678",
		" +254 712 345678": "254712345678",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in, "254")
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "07123abc78", "+", "254", "07", "2547", "07123456789", "0712345"} {
		_, err := NormalizePhone(bad, "254")
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}
