// Package tpay talks to the Tpay OpenAPI: it opens transactions for payment
// intents and verifies the notifications Tpay sends back.
package tpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
)

// Base URLs of the two Tpay environments.
const (
	SandboxBaseURL    = "https://openapi.sandbox.tpay.com"
	ProductionBaseURL = "https://openapi.tpay.com"
)

// ErrNoPaymentURL is returned when Tpay accepted a transaction but sent no
// URL to redirect the payer to.
var ErrNoPaymentURL = errors.New("tpay: no payment url in response")

// StatusError is a non-2xx response from Tpay.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tpay: transaction failed (status %d) :: %s", e.Status, e.Body)
}

// Retryable reports whether the status is a transient upstream failure.
func Retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout,
		520, 521, 522, 523, 524:
		return true
	}
	return false
}

// Config holds the client settings.
type Config struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	MaxAttempts    uint
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// Client creates Tpay transactions with Basic authentication.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates cfg and applies defaults: sandbox base URL, three
// attempts, 400ms initial backoff, 15s HTTP timeout.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("tpay: client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 400 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}, nil
}

// TransactionRequest describes the transaction to open for one intent.
type TransactionRequest struct {
	IntentID        string
	AmountCents     int64
	Currency        string
	Description     string
	PayerEmail      string
	PayerName       string
	SuccessURL      string
	ErrorURL        string
	NotificationURL string
}

// Transaction is what Tpay returned for a created transaction.
type Transaction struct {
	ID         string
	Title      string
	PaymentURL string
}

type payer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type notificationCallback struct {
	URL string `json:"url,omitempty"`
}

type payerURLs struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

type callbacks struct {
	Notification notificationCallback `json:"notification"`
	PayerURLs    payerURLs            `json:"payerUrls"`
}

type transactionPayload struct {
	Amount            json.Number `json:"amount"`
	Currency          string      `json:"currency"`
	Description       string      `json:"description"`
	HiddenDescription string      `json:"hiddenDescription"`
	Payer             payer       `json:"payer"`
	Callbacks         callbacks   `json:"callbacks"`
}

type transactionResponse struct {
	TransactionID         string `json:"transactionId"`
	Title                 string `json:"title"`
	TransactionPaymentURL string `json:"transactionPaymentUrl"`
	PaymentURL            string `json:"paymentUrl"`
}

// Amount renders cents as the decimal amount Tpay expects ("40.00").
func Amount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// CreateTransaction opens a transaction. The intent id travels as the
// hidden description and comes back as tr_crc in the notification.
// Transient statuses are retried with exponential backoff.
func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error) {
	if req.IntentID == "" {
		return Transaction{}, errors.New("tpay: intent id is required")
	}
	if req.AmountCents <= 0 {
		return Transaction{}, fmt.Errorf("tpay: invalid amount %d", req.AmountCents)
	}
	currency := req.Currency
	if currency == "" {
		currency = "PLN"
	}
	body, err := json.Marshal(transactionPayload{
		Amount:            json.Number(Amount(req.AmountCents)),
		Currency:          currency,
		Description:       req.Description,
		HiddenDescription: req.IntentID,
		Payer:             payer{Email: req.PayerEmail, Name: req.PayerName},
		Callbacks: callbacks{
			Notification: notificationCallback{URL: req.NotificationURL},
			PayerURLs:    payerURLs{Success: req.SuccessURL, Error: req.ErrorURL},
		},
	})
	if err != nil {
		return Transaction{}, err
	}
	log.Printf("tpay: create transaction intent=%s amount=%s client=%s", Mask(req.IntentID), Amount(req.AmountCents), Mask(c.cfg.ClientID))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	op := func() (Transaction, error) {
		attempt++
		tr, err := c.post(ctx, body)
		var se *StatusError
		if errors.As(err, &se) && Retryable(se.Status) {
			log.Printf("tpay: transient %d, attempt %d/%d", se.Status, attempt, c.cfg.MaxAttempts)
			return Transaction{}, err
		}
		if err != nil {
			return Transaction{}, backoff.Permanent(err)
		}
		return tr, nil
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.MaxAttempts))
}

func (c *Client) post(ctx context.Context, body []byte) (Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return Transaction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	res, err := c.http.Do(req)
	if err != nil {
		return Transaction{}, fmt.Errorf("tpay: post transaction: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Transaction{}, fmt.Errorf("tpay: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Transaction{}, &StatusError{Status: res.StatusCode, Body: string(raw)}
	}

	var out transactionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Transaction{}, fmt.Errorf("tpay: decode response: %w", err)
	}
	url := out.TransactionPaymentURL
	if url == "" {
		url = out.PaymentURL
	}
	if url == "" {
		return Transaction{}, ErrNoPaymentURL
	}
	return Transaction{ID: out.TransactionID, Title: out.Title, PaymentURL: url}, nil
}
