// Package daraja implements the payment.Gateway contract against the
// Safaricom Daraja STK push API.
package daraja

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tickethub/config"
	"tickethub/utils"

	"golang.org/x/sync/singleflight"
)

const (
	authPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath = "/mpesa/stkpush/v1/processrequest"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"
)

type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passKey        string
	callbackURL    string

	// tokenMargin is subtracted from the advertised token lifetime so the
	// credential is refreshed before the gateway would reject it.
	tokenMargin time.Duration

	// mu guards the cached credential; sf collapses concurrent refreshes
	// into a single fetch.
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	sf          singleflight.Group

	cb *utils.CircuitBreaker
	hc *http.Client

	now func() time.Time
}

func NewClient(cfg *config.DarajaConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passKey:        cfg.PassKey,
		callbackURL:    cfg.CallbackURL,
		tokenMargin:    cfg.TokenSafetyMargin,

		cb: utils.NewCircuitBreaker("daraja"),
		hc: &http.Client{
			Timeout: cfg.PushTimeout,
		},

		now: time.Now,
	}
}

// password derives the push credential for one request: the shortcode and
// passkey concatenated with the request timestamp, base64 encoded.
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passKey + timestamp))
}

func (c *Client) timestamp() string {
	return c.now().Format(timestampLayout)
}

func basicAuth(key, secret string) string {
	return fmt.Sprintf("Basic %s", base64.StdEncoding.EncodeToString([]byte(key+":"+secret)))
}
