package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

const (
	parcelsPath                 = "parcels"
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("courier base url is required")

// Booker creates parcels for courier deliveries.
type Booker interface {
	CreateParcel(ctx context.Context, in ParcelRequest) (string, error)
}

// Client books parcels with the delivery partner's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// NewClient builds the courier client from configuration.
func NewClient(cfg config.CourierConfig, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ParcelRequest describes a paid order handed to the courier.
type ParcelRequest struct {
	Reference      string          `json:"reference"`
	RecipientPhone string          `json:"recipient_phone,omitempty"`
	Destination    json.RawMessage `json:"destination,omitempty"`
	ItemCount      int             `json:"item_count"`
	DeclaredValue  string          `json:"declared_value"`
}

type parcelResponse struct {
	TrackingNumber string `json:"tracking_number"`
}

// CreateParcel books a pickup and returns the courier's tracking number.
func (c *Client) CreateParcel(ctx context.Context, in ParcelRequest) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "courier client not configured")
	}
	if strings.TrimSpace(in.Reference) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "parcel reference is required")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal parcel request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+parcelsPath, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build parcel request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute parcel request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "parcel request failed")
	}

	var out parcelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode parcel response")
	}
	if strings.TrimSpace(out.TrackingNumber) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "tracking number missing from courier response")
	}
	return out.TrackingNumber, nil
}
