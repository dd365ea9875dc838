// Package paymentgateway creates hosted invoices on Xendit.
package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type InvoiceRequest struct {
	ExternalID         string
	Amount             int64
	Description        string
	PayerEmail         string
	SuccessRedirectURL string
	Duration           time.Duration
}

type Invoice struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"`
	InvoiceURL string    `json:"invoice_url"`
	ExpiryDate time.Time `json:"expiry_date"`
}

type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		secretKey:  config.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "xendit"),
	}
}

type createInvoicePayload struct {
	ExternalID         string `json:"external_id"`
	Amount             int64  `json:"amount"`
	Description        string `json:"description,omitempty"`
	PayerEmail         string `json:"payer_email,omitempty"`
	InvoiceDuration    int64  `json:"invoice_duration,omitempty"`
	SuccessRedirectURL string `json:"success_redirect_url,omitempty"`
	Currency           string `json:"currency"`
}

func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if req.ExternalID == "" || req.Amount <= 0 {
		return nil, fmt.Errorf("invalid invoice request: external_id and a positive amount are required")
	}

	payload := createInvoicePayload{
		ExternalID:         req.ExternalID,
		Amount:             req.Amount,
		Description:        req.Description,
		PayerEmail:         req.PayerEmail,
		InvoiceDuration:    int64(req.Duration / time.Second),
		SuccessRedirectURL: req.SuccessRedirectURL,
		Currency:           "IDR",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/invoices", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("invoice creation rejected",
			"external_id", req.ExternalID,
			"status_code", resp.StatusCode,
			"body", string(body))
		return nil, fmt.Errorf("xendit returned status %d", resp.StatusCode)
	}

	var invoice Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("invoice created",
		"invoice_id", invoice.ID,
		"external_id", invoice.ExternalID,
		"expiry_date", invoice.ExpiryDate)

	return &invoice, nil
}
