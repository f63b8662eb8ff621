// Package gateway предоставляет клиент внешней системы авторизации платежей по картам.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Статусы авторизации, возвращаемые платёжной системой.
const (
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
)

// Client инкапсулирует HTTP-взаимодействие с платёжной системой.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// AuthorizationRequest описывает запрос на списание суммы с карты.
type AuthorizationRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amountCents"`
	CardNumber  string `json:"cardNumber"`
	ExpiryDate  string `json:"expiryDate"`
	CVC         string `json:"cvc"`
	CardHolder  string `json:"cardHolder"`
}

// Authorization описывает ответ платёжной системы.
type Authorization struct {
	Status            string `json:"status"`
	TransactionID     string `json:"transactionId"`
	AuthorizationCode string `json:"authorizationCode"`
}

// NewClient создаёт HTTP-клиент для обращения к платёжной системе по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Authorize запрашивает авторизацию платежа. При ответе 429 возвращает код статуса и задержку Retry-After.
func (c *Client) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("payment gateway not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/payments", bytes.NewReader(body))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Authorization
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
