package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tickethub/internal/payment"
	"tickethub/internal/status"
)

// token returns the cached access token, refreshing it when the cached one
// is inside the safety margin. Concurrent callers during an expired-token
// window share one fetch.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do("token", func() (any, error) {
		token, lifetime, err := c.connect(ctx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.accessToken = token
		c.tokenExpiry = c.now().Add(lifetime - c.tokenMargin)
		c.mu.Unlock()

		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// invalidateToken drops the cached credential after the gateway reported it
// unauthorized, forcing the next caller to fetch a fresh one.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
}

// connect makes http call to perform authentication with the Daraja backend.
func (c *Client) connect(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authPath, nil)
	if err != nil {
		return "", 0, fmt.Errorf("connectDaraja: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Authorization", basicAuth(c.consumerKey, c.consumerSecret))

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("connectDaraja: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("connectDaraja: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", 0, fmt.Errorf("connectDaraja: json.Decode: %w", err)
	}
	if reply.AccessToken == "" {
		return "", 0, errors.New("connectDaraja: empty access_token in reply")
	}

	lifetime := time.Hour
	if secs, err := strconv.Atoi(reply.ExpiresIn); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	return reply.AccessToken, lifetime, nil
}

type pushPayload struct {
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

type pushReply struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CustomerMessage     string `json:"CustomerMessage"`

	// present on rejected requests
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// InitiatePush submits an STK push. Any non-success reply, including a soft
// rejection response code, surfaces as status.ErrGatewayRejected.
func (c *Client) InitiatePush(ctx context.Context, p *payment.PushRequest) (*payment.PushResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("InitiatePush: %w", err)
	}

	if !p.Amount.IsInteger() {
		return nil, fmt.Errorf("InitiatePush: amount %s is not in whole currency units", p.Amount)
	}

	ts := c.timestamp()
	payload := pushPayload{
		BusinessShortCode: c.shortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            p.Amount.IntPart(),
		PartyA:            p.Phone,
		PartyB:            c.shortCode,
		PhoneNumber:       p.Phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  p.AccountReference,
		TransactionDesc:   p.Description,
	}

	result, err := c.cb.Execute(ctx, func() (interface{}, error) {
		return c.submitPush(ctx, token, &payload)
	})
	if err != nil {
		return nil, err
	}
	return result.(*payment.PushResult), nil
}

func (c *Client) submitPush(ctx context.Context, token string, payload *pushPayload) (*payment.PushResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("submitPush: json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("submitPush: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitPush: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		return nil, errors.New("submitPush: resp.StatusCode: 401 => Unauthorized")
	}

	var reply pushReply
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("submitPush: json.Decode: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("daraja push rejected",
			"status", resp.StatusCode, "errorCode", reply.ErrorCode, "errorMessage", reply.ErrorMessage)
		return nil, fmt.Errorf("submitPush: status %d, errorCode %s: %s: %w",
			resp.StatusCode, reply.ErrorCode, reply.ErrorMessage, status.ErrGatewayRejected)
	}

	if reply.ResponseCode != "0" {
		return nil, fmt.Errorf("submitPush: ResponseCode %s: %s: %w",
			reply.ResponseCode, reply.ResponseDescription, status.ErrGatewayRejected)
	}

	return &payment.PushResult{
		CheckoutRequestID: reply.CheckoutRequestID,
		MerchantRequestID: reply.MerchantRequestID,
		CustomerMessage:   reply.CustomerMessage,
	}, nil
}
