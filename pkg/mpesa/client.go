package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

const (
	tokenPath   = "oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "mpesa/stkpush/v1/processrequest"
	b2cPath     = "mpesa/b2c/v3/paymentrequest"

	// TimestampLayout is the gateway's yyyyMMddHHmmss timestamp format.
	TimestampLayout = "20060102150405"

	transactionTypePayBill = "CustomerPayBillOnline"
	commandBusinessPayment = "BusinessPayment"
	successResponseCode    = "0"

	responseBodyReadLimit int64 = 1024
)

var (
	errCredentialsRequired = errors.New("mpesa consumer key and secret are required")
	errShortCodeRequired   = errors.New("mpesa shortcode and passkey are required")
)

// Client talks to the mobile money gateway. Access tokens are fetched per
// operation and never cached.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        config.MpesaConfig
	now        func() time.Time
	observe    func(operation string, d time.Duration)
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithClock overrides the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver registers a latency callback invoked after every gateway request.
func WithObserver(fn func(operation string, d time.Duration)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient builds the gateway client from configuration.
func NewClient(cfg config.MpesaConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.ShortCode) == "" || strings.TrimSpace(cfg.Passkey) == "" {
		return nil, errShortCodeRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		cfg:        cfg,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// STKPushRequest asks the gateway to prompt the payer's phone for a PIN.
type STKPushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
	CallbackURL      string
}

// STKPushResponse carries the correlation ids assigned by the gateway.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// B2CRequest pays out from the business account to a phone number.
type B2CRequest struct {
	OriginatorConversationID string
	Phone                    string
	Amount                   int64
	Remarks                  string
	Occasion                 string
	ResultURL                string
	QueueTimeOutURL          string
}

// B2CResponse carries the correlation ids of an accepted payout request.
type B2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// AccessToken exchanges the consumer credentials for a short lived bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(tokenPath), nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build access token request")
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := c.do(req, "token", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "access token missing from gateway response")
	}
	return out.AccessToken, nil
}

// STKPush sends a push payment prompt to the payer. Amounts are whole currency units.
func (c *Client) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}
	if in.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(gatewayZone).Format(TimestampLayout)
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   transactionTypePayBill,
		"Amount":            in.Amount,
		"PartyA":            phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       in.CallbackURL,
		"AccountReference":  truncate(in.AccountReference, 12),
		"TransactionDesc":   truncate(in.Description, 13),
	}

	var out STKPushResponse
	if err := c.postJSON(ctx, stkPushPath, token, "stk_push", body, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != successResponseCode || out.CheckoutRequestID == "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "stk push rejected: %s %s", out.ResponseCode, out.ResponseDescription)
	}
	return &out, nil
}

// B2CPayment requests a payout to the recipient phone. Amounts are whole currency units.
func (c *Client) B2CPayment(ctx context.Context, in B2CRequest) (*B2CResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}
	if in.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(in.OriginatorConversationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "originator conversation id is required")
	}
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	shortCode := c.cfg.B2CShortCode
	if shortCode == "" {
		shortCode = c.cfg.ShortCode
	}
	body := map[string]any{
		"OriginatorConversationID": in.OriginatorConversationID,
		"InitiatorName":            c.cfg.InitiatorName,
		"SecurityCredential":       c.cfg.SecurityCredential,
		"CommandID":                commandBusinessPayment,
		"Amount":                   in.Amount,
		"PartyA":                   shortCode,
		"PartyB":                   phone,
		"Remarks":                  truncate(in.Remarks, 100),
		"QueueTimeOutURL":          in.QueueTimeOutURL,
		"ResultURL":                in.ResultURL,
		"Occasion":                 truncate(in.Occasion, 100),
	}

	var out B2CResponse
	if err := c.postJSON(ctx, b2cPath, token, "b2c", body, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != successResponseCode {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "b2c payment rejected: %s %s", out.ResponseCode, out.ResponseDescription)
	}
	if out.OriginatorConversationID == "" {
		out.OriginatorConversationID = in.OriginatorConversationID
	}
	return &out, nil
}

// Password derives the STK push password for the given timestamp.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

func (c *Client) postJSON(ctx context.Context, path, token, operation string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal "+operation+" request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+operation+" request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req, operation, out)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		c.observe(operation, time.Since(started))
	}
	if err != nil {
		if isTimeout(err) {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, operation+" request timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+operation+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), operation+" request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+operation+" response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max]
}
