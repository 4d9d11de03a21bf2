package mpesa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ResultCodeCancelledByUser is reported when the payer dismisses the PIN prompt.
const ResultCodeCancelledByUser = 1032

// ResultCodeSuccess is the only code that represents a settled transaction.
const ResultCodeSuccess = 0

const (
	metaAmount          = "Amount"
	metaReceipt         = "MpesaReceiptNumber"
	metaTransactionDate = "TransactionDate"
	metaPhone           = "PhoneNumber"

	paramAmount        = "TransactionAmount"
	paramReceipt       = "TransactionReceipt"
	paramRecipientName = "ReceiverPartyPublicName"
	paramCompletedAt   = "TransactionCompletedDateTime"

	completedAtLayout = "02.01.2006 15:04:05"
)

// gatewayZone is the fixed offset the gateway stamps its local times with.
var gatewayZone = time.FixedZone("EAT", 3*60*60)

// Ack is the body returned to the gateway for every callback.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Accepted is the acknowledgement sent regardless of how a callback was handled.
var Accepted = Ack{ResultCode: 0, ResultDesc: "Accepted"}

// ResultCode accepts both numeric and quoted numeric codes.
type ResultCode int

func (r *ResultCode) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return errors.New("result code is empty")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("result code %q is not numeric", raw)
	}
	*r = ResultCode(n)
	return nil
}

// Int returns the code as a plain int.
func (r ResultCode) Int() int { return int(r) }

// STKCallbackEnvelope is the body posted to the STK callback URL.
type STKCallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// Validate checks the fields required to correlate the callback.
func (e STKCallbackEnvelope) Validate() error {
	if strings.TrimSpace(e.Body.STKCallback.CheckoutRequestID) == "" {
		return errors.New("stk callback missing CheckoutRequestID")
	}
	return nil
}

// STKCallback reports the outcome of one push payment prompt.
type STKCallback struct {
	MerchantRequestID string     `json:"MerchantRequestID"`
	CheckoutRequestID string     `json:"CheckoutRequestID"`
	ResultCode        ResultCode `json:"ResultCode"`
	ResultDesc        string     `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []MetadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// MetadataItem is a single named value in the STK callback metadata.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Succeeded reports whether the payer completed the payment.
func (s STKCallback) Succeeded() bool {
	return s.ResultCode.Int() == ResultCodeSuccess
}

// Metadata looks up a metadata value by name.
func (s STKCallback) Metadata(name string) (string, bool) {
	for _, item := range s.CallbackMetadata.Item {
		if item.Name == name {
			return rawString(item.Value)
		}
	}
	return "", false
}

// ReceiptNumber returns the transaction receipt reported on success.
func (s STKCallback) ReceiptNumber() string {
	v, _ := s.Metadata(metaReceipt)
	return v
}

// PhoneNumber returns the paying phone number reported on success.
func (s STKCallback) PhoneNumber() string {
	v, _ := s.Metadata(metaPhone)
	return v
}

// Amount returns the amount the payer actually paid.
func (s STKCallback) Amount() (decimal.Decimal, bool) {
	v, ok := s.Metadata(metaAmount)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// TransactionDate returns the gateway's completion timestamp.
func (s STKCallback) TransactionDate() (time.Time, bool) {
	v, ok := s.Metadata(metaTransactionDate)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, v, gatewayZone)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// B2CResultEnvelope is the body posted to the payout result and timeout URLs.
type B2CResultEnvelope struct {
	Result B2CResult `json:"Result"`
}

// Validate checks the fields required to correlate the callback.
func (e B2CResultEnvelope) Validate() error {
	if strings.TrimSpace(e.Result.OriginatorConversationID) == "" {
		return errors.New("b2c result missing OriginatorConversationID")
	}
	return nil
}

// B2CResult reports the outcome of one payout.
type B2CResult struct {
	ResultType               int        `json:"ResultType"`
	ResultCode               ResultCode `json:"ResultCode"`
	ResultDesc               string     `json:"ResultDesc"`
	OriginatorConversationID string     `json:"OriginatorConversationID"`
	ConversationID           string     `json:"ConversationID"`
	TransactionID            string     `json:"TransactionID"`
	ResultParameters         struct {
		ResultParameter []ResultParameter `json:"ResultParameter"`
	} `json:"ResultParameters"`
}

// ResultParameter is a single keyed value in a payout result.
type ResultParameter struct {
	Key   string          `json:"Key"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Succeeded reports whether the payout reached the recipient.
func (r B2CResult) Succeeded() bool {
	return r.ResultCode.Int() == ResultCodeSuccess
}

// Parameter looks up a result parameter by key.
func (r B2CResult) Parameter(key string) (string, bool) {
	for _, p := range r.ResultParameters.ResultParameter {
		if p.Key == key {
			return rawString(p.Value)
		}
	}
	return "", false
}

// TransactionReference returns the transaction id, falling back to the receipt parameter.
func (r B2CResult) TransactionReference() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	v, _ := r.Parameter(paramReceipt)
	return v
}

// Amount returns the amount actually paid out.
func (r B2CResult) Amount() (decimal.Decimal, bool) {
	v, ok := r.Parameter(paramAmount)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// RecipientName returns the public name registered on the receiving phone.
func (r B2CResult) RecipientName() string {
	v, _ := r.Parameter(paramRecipientName)
	return v
}

// CompletedAt returns the gateway's completion timestamp.
func (r B2CResult) CompletedAt() (time.Time, bool) {
	v, ok := r.Parameter(paramCompletedAt)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(completedAtLayout, v, gatewayZone)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// rawString renders a JSON scalar as text: strings are unquoted, numbers kept verbatim.
func rawString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(trimmed), true
}
