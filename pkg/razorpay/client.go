package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anshgupta/storekart-backend/pkg/config"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")

	// ErrNotFound reports that the requested gateway entity does not exist.
	// Callers use it to self-heal stale customer mappings.
	ErrNotFound = errors.New("razorpay: entity not found")
)

// Client talks to the Razorpay REST API with centralized auth, bounded
// timeouts, and error mapping. Calls never hang: a timeout or 5xx surfaces
// as a retriable gateway error without automatic retry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	logger     *logger.Logger
}

// Order is the gateway-side order created before the buyer pays.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is the gateway's record of a completed or attempted payment.
type Payment struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	Method     string `json:"method"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	TokenID    string `json:"token_id"`
	Email      string `json:"email"`
	Contact    string `json:"contact"`
}

// Customer is a gateway-side buyer identity.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// Token describes a saved payment instrument.
type Token struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Card   TokenCard `json:"card"`
}

// TokenCard carries the card details attached to a token.
type TokenCard struct {
	Last4   string `json:"last4"`
	Network string `json:"network"`
}

// NewClient validates the credentials and builds the gateway client.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		logger:     logg,
	}

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}
	return c, nil
}

// CreateOrder registers a gateway order for the given amount in paise.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]string) (*Order, error) {
	payload := map[string]any{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment loads a payment by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreateCustomer registers a buyer identity on the gateway.
func (c *Client) CreateCustomer(ctx context.Context, name, email, contact string) (*Customer, error) {
	payload := map[string]any{
		"name":          name,
		"email":         email,
		"fail_existing": "0",
	}
	if contact != "" {
		payload["contact"] = contact
	}
	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", payload, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FetchCustomer loads a customer, returning ErrNotFound when the gateway
// no longer knows the id.
func (c *Client) FetchCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+customerID, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FetchToken re-verifies a token's status directly with the gateway.
func (c *Client) FetchToken(ctx context.Context, customerID, tokenID string) (*Token, error) {
	var token Token
	if err := c.do(ctx, http.MethodGet, "/customers/"+customerID+"/tokens/"+tokenID, nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

type apiErrorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway call timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNotFound, "gateway entity not found")
	case resp.StatusCode >= 500:
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, fmt.Errorf("gateway returned %d", resp.StatusCode), "gateway unavailable")
	default:
		var envelope apiErrorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Description != "" {
			return pkgerrors.Wrap(
				pkgerrors.CodeDependency,
				fmt.Errorf("gateway error %s: %s", envelope.Error.Code, envelope.Error.Description),
				"gateway rejected request",
			)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("gateway returned %d", resp.StatusCode), "gateway rejected request")
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
