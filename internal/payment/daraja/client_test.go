package daraja

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tickethub/config"
	"tickethub/internal/payment"
	"tickethub/internal/status"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayStub struct {
	mu         sync.Mutex
	authCalls  int32
	pushCalls  int32
	expiresIn  string
	pushStatus int
	pushReply  map[string]any
	lastPush   map[string]any
}

func newGatewayStub() *gatewayStub {
	return &gatewayStub{
		expiresIn:  "3599",
		pushStatus: http.StatusOK,
		pushReply: map[string]any{
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CheckoutRequestID":   "ws_CO_191220191020363925",
			"MerchantRequestID":   "29115-34620561-1",
			"CustomerMessage":     "Success. Request accepted for processing",
		},
	}
}

func (g *gatewayStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&g.authCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "stub-token",
			"expires_in":   g.expiresIn,
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&g.pushCalls, 1)

		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		g.mu.Lock()
		g.lastPush = payload
		status := g.pushStatus
		reply := g.pushReply
		g.mu.Unlock()

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(reply)
	})
	return mux
}

func newTestClient(t *testing.T, stub *gatewayStub) *Client {
	t.Helper()

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	return NewClient(&config.DarajaConfig{
		BaseURL:           server.URL,
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
		ShortCode:         "174379",
		PassKey:           "passkey",
		CallbackURL:       "https://example.com/api/v1/payments/mpesa/callback",
		PushTimeout:       5 * time.Second,
		TokenSafetyMargin: 60 * time.Second,
	})
}

func pushRequest() *payment.PushRequest {
	return &payment.PushRequest{
		Amount:           decimal.NewFromInt(3000),
		Phone:            "254712345678",
		AccountReference: "ORD-abc123",
		Description:      "Event ticket purchase",
	}
}

func TestInitiatePushBuildsDarajaPayload(t *testing.T) {
	stub := newGatewayStub()
	client := newTestClient(t, stub)
	client.now = func() time.Time { return time.Date(2025, 8, 18, 14, 30, 5, 0, time.UTC) }

	result, err := client.InitiatePush(context.Background(), pushRequest())
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", result.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", result.MerchantRequestID)

	stub.mu.Lock()
	payload := stub.lastPush
	stub.mu.Unlock()

	assert.Equal(t, "174379", payload["BusinessShortCode"])
	assert.Equal(t, "CustomerPayBillOnline", payload["TransactionType"])
	assert.Equal(t, float64(3000), payload["Amount"])
	assert.Equal(t, "254712345678", payload["PartyA"])
	assert.Equal(t, "254712345678", payload["PhoneNumber"])
	assert.Equal(t, "20250818143005", payload["Timestamp"])
	assert.Equal(t, "ORD-abc123", payload["AccountReference"])
	assert.NotEmpty(t, payload["Password"])
}

func TestTokenIsCachedAcrossPushes(t *testing.T) {
	stub := newGatewayStub()
	client := newTestClient(t, stub)

	for i := 0; i < 3; i++ {
		_, err := client.InitiatePush(context.Background(), pushRequest())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.authCalls), "one credential serves many pushes")
	assert.Equal(t, int32(3), atomic.LoadInt32(&stub.pushCalls))
}

func TestConcurrentCallersShareOneTokenFetch(t *testing.T) {
	stub := newGatewayStub()
	client := newTestClient(t, stub)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.authCalls))
}

func TestTokenRefreshedInsideSafetyMargin(t *testing.T) {
	stub := newGatewayStub()
	stub.expiresIn = "90"
	client := newTestClient(t, stub)

	base := time.Now()
	current := base
	client.now = func() time.Time { return current }

	_, err := client.token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&stub.authCalls))

	// 90s lifetime minus the 60s margin leaves a 30s usable window; 31s in,
	// the cached token must not be trusted.
	current = base.Add(31 * time.Second)

	_, err = client.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.authCalls))
}

func TestInitiatePushRejectsFractionalAmount(t *testing.T) {
	stub := newGatewayStub()
	client := newTestClient(t, stub)

	req := pushRequest()
	req.Amount = decimal.NewFromFloat(1500.50)

	_, err := client.InitiatePush(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&stub.pushCalls))
}

func TestInitiatePushGatewayRejection(t *testing.T) {
	stub := newGatewayStub()
	stub.pushStatus = http.StatusBadRequest
	stub.pushReply = map[string]any{
		"errorCode":    "400.002.02",
		"errorMessage": "Bad Request - Invalid PhoneNumber",
	}
	client := newTestClient(t, stub)

	_, err := client.InitiatePush(context.Background(), pushRequest())
	assert.ErrorIs(t, err, status.ErrGatewayRejected)
}

func TestInitiatePushSoftRejection(t *testing.T) {
	stub := newGatewayStub()
	stub.pushReply = map[string]any{
		"ResponseCode":        "1",
		"ResponseDescription": "Unable to process request",
	}
	client := newTestClient(t, stub)

	_, err := client.InitiatePush(context.Background(), pushRequest())
	assert.ErrorIs(t, err, status.ErrGatewayRejected)
}

func TestUnauthorizedPushInvalidatesToken(t *testing.T) {
	stub := newGatewayStub()
	stub.pushStatus = http.StatusUnauthorized
	client := newTestClient(t, stub)

	_, err := client.InitiatePush(context.Background(), pushRequest())
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&stub.authCalls))

	// The stale credential was dropped, so the next push authenticates anew.
	stub.mu.Lock()
	stub.pushStatus = http.StatusOK
	stub.mu.Unlock()

	_, err = client.InitiatePush(context.Background(), pushRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.authCalls))
}

func TestPasswordDerivation(t *testing.T) {
	client := NewClient(&config.DarajaConfig{
		ShortCode: "174379",
		PassKey:   "secretpasskey",
	})

	// base64(shortcode + passkey + timestamp)
	assert.Equal(t, "MTc0Mzc5c2VjcmV0cGFzc2tleTIwMjUwODE4MTQzMDA1", client.password("20250818143005"))
}
