package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"tickethub/internal/payment"
	"tickethub/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type CallbackHandler struct {
	processor *services.CallbackProcessor
}

func NewCallbackHandler(processor *services.CallbackProcessor) *CallbackHandler {
	return &CallbackHandler{processor: processor}
}

// metadata item values arrive as strings or numbers depending on the field,
// so they are decoded lazily.
type callbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackEnvelope struct {
	Body struct {
		StkCallback stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// HandleCallback - Receive the gateway's payment result webhook
func (h *CallbackHandler) HandleCallback(e *core.RequestEvent) error {
	var envelope callbackEnvelope
	if err := e.BindBody(&envelope); err != nil {
		return apis.NewBadRequestError("Malformed callback payload", err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return apis.NewBadRequestError("Malformed callback payload", nil)
	}

	n := &payment.Notification{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.ResultCode == 0 {
		n.Receipt = metadataString(cb.CallbackMetadata.Item, "MpesaReceiptNumber")
		n.Amount = metadataDecimal(cb.CallbackMetadata.Item, "Amount")
		n.Phone = metadataString(cb.CallbackMetadata.Item, "PhoneNumber")
	}

	ack, err := h.processor.Process(e.Request.Context(), n)
	if err != nil {
		return apis.NewInternalServerError("Failed to process callback", err)
	}

	// 200 regardless of business outcome so the gateway stops redelivering.
	return e.JSON(http.StatusOK, map[string]any{"result": string(ack)})
}

func metadataString(items []callbackItem, name string) string {
	for _, item := range items {
		if item.Name != name {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s
		}
		// numeric value, e.g. PhoneNumber
		return strings.Trim(string(item.Value), `"`)
	}
	return ""
}

func metadataDecimal(items []callbackItem, name string) decimal.Decimal {
	for _, item := range items {
		if item.Name != name {
			continue
		}
		raw := strings.Trim(string(item.Value), `"`)
		if d, err := decimal.NewFromString(raw); err == nil {
			return d
		}
	}
	return decimal.Zero
}
