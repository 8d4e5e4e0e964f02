package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is the production Rail: it posts payout instructions to an
// external payout processor over HTTP. Each payout carries a fresh
// idempotency key so a retried request cannot double-pay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type payoutRequest struct {
	PayeeAccountID int64  `json:"payee_account_id"`
	AmountCents    int64  `json:"amount_cents"`
	Memo           string `json:"memo"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (c *Client) Payout(ctx context.Context, payeeAccountID int64, amountCents int64, memo string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("payment rail not configured")
	}
	if amountCents <= 0 {
		return nil
	}

	body, err := json.Marshal(payoutRequest{
		PayeeAccountID: payeeAccountID,
		AmountCents:    amountCents,
		Memo:           memo,
		IdempotencyKey: uuid.New().String(),
	})
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("payout rejected: status %d", resp.StatusCode)
	}
	return nil
}
