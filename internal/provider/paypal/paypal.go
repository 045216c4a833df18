package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creatorhub/payout-service/internal/model"
	"go.uber.org/zap"
)

// Client talks to the PayPal Payouts API. One client serves both the
// account (email) and card (phone) rails; they differ only in payload.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a PayPal client. baseURL is the environment host
// (sandbox or live); skew is the token expiry safety margin.
func NewClient(baseURL, clientID, clientSecret string, skew, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     NewTokenSource(baseURL, clientID, clientSecret, skew, httpClient),
		logger:     logger,
		now:        time.Now,
	}
}

// Tokens exposes the token source so an auth-class failure observed by a
// caller can force a refetch.
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// Wire types for the Payouts API

type batchPayload struct {
	SenderBatchHeader senderBatchHeader `json:"sender_batch_header"`
	Items             []payoutItem      `json:"items"`
}

type senderBatchHeader struct {
	SenderBatchID string `json:"sender_batch_id"`
	EmailSubject  string `json:"email_subject"`
}

type payoutItem struct {
	RecipientType string       `json:"recipient_type"`
	Amount        payoutAmount `json:"amount"`
	Receiver      string       `json:"receiver"`
	Note          string       `json:"note,omitempty"`
	SenderItemID  string       `json:"sender_item_id"`
}

type payoutAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type batchResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// formatAmount renders the amount as the shortest decimal string the
// Payouts API expects ("12.5", never "12.500000")
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// buildAccountBatch constructs a single-item payout batch addressed to a
// PayPal account by email. Deterministic given ts.
func buildAccountBatch(req *model.WithdrawalRequest, ts time.Time) batchPayload {
	return buildBatch(req, ts, "EMAIL", req.PayPalEmail)
}

// buildCardBatch is the same batch shape addressed to a phone number
func buildCardBatch(req *model.WithdrawalRequest, ts time.Time) batchPayload {
	return buildBatch(req, ts, "PHONE", req.PhoneNumber)
}

func buildBatch(req *model.WithdrawalRequest, ts time.Time, recipientType, receiver string) batchPayload {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	note := req.Note
	if note == "" {
		note = "Creator earnings payout"
	}
	stamp := ts.UnixNano()
	return batchPayload{
		SenderBatchHeader: senderBatchHeader{
			SenderBatchID: fmt.Sprintf("payouts-%d", stamp),
			EmailSubject:  "You have a payout",
		},
		Items: []payoutItem{{
			RecipientType: recipientType,
			Amount: payoutAmount{
				Value:    formatAmount(req.Amount),
				Currency: currency,
			},
			Receiver:     receiver,
			Note:         note,
			SenderItemID: fmt.Sprintf("item-%d", stamp),
		}},
	}
}

func (c *Client) sendBatch(ctx context.Context, req *model.WithdrawalRequest, payload batchPayload) (*model.PayoutResult, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method, "marshal payload: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments/payouts", bytes.NewReader(data))
	if err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	// Provider-side idempotency: retrying the same batch id does not
	// create a second batch
	httpReq.Header.Set("PayPal-Request-Id", payload.SenderBatchHeader.SenderBatchID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method, "read response: "+err.Error())
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, model.NewProviderError(model.ErrAuthenticationFailed, "paypal", req.Method,
			"payouts call rejected the bearer token")
	}

	var parsed batchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method,
			fmt.Sprintf("malformed response (%d): %s", resp.StatusCode, string(respBody)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = fmt.Sprintf("payouts endpoint returned %d", resp.StatusCode)
		}
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method, msg)
	}

	if parsed.BatchHeader.PayoutBatchID == "" {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "paypal", req.Method,
			"response missing payout_batch_id")
	}

	c.logger.Info("PayPal payout batch accepted",
		zap.String("batchId", parsed.BatchHeader.PayoutBatchID),
		zap.String("method", string(req.Method)),
	)

	return &model.PayoutResult{
		Success:           true,
		Status:            model.PayoutStatusProcessing,
		ProviderReference: parsed.BatchHeader.PayoutBatchID,
		InternalReference: payload.SenderBatchHeader.SenderBatchID,
		Message:           "Payout batch submitted",
	}, nil
}

// Verify queries the payouts-batch-status endpoint. The provider's
// batch_status is lowercased; the raw payload rides along in Details.
func (c *Client) Verify(ctx context.Context, reference string) (*model.VerificationResult, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/payouts/"+reference, nil)
	if err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "paypal", "", err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "paypal", "", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, model.NewProviderError(model.ErrVerificationFailed, "paypal", "",
			fmt.Sprintf("status endpoint returned %d: %s", resp.StatusCode, string(respBody)))
	}

	var details map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "paypal", "", "malformed status response: "+err.Error())
	}

	status := ""
	if header, ok := details["batch_header"].(map[string]interface{}); ok {
		if s, ok := header["batch_status"].(string); ok {
			status = strings.ToLower(s)
		}
	}
	if status == "" {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "paypal", "", "status response missing batch_status")
	}

	return &model.VerificationResult{Status: status, Details: details}, nil
}

// AccountAdapter is the PayPal account-transfer rail
type AccountAdapter struct {
	c *Client
}

// NewAccountAdapter binds the account rail to a client
func NewAccountAdapter(c *Client) *AccountAdapter {
	return &AccountAdapter{c: c}
}

func (a *AccountAdapter) Name() string { return "paypal_account" }

func (a *AccountAdapter) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	return a.c.sendBatch(ctx, req, buildAccountBatch(req, a.c.now()))
}

// CardAdapter is the PayPal card-transfer rail, addressed by phone number
type CardAdapter struct {
	c *Client
}

// NewCardAdapter binds the card rail to a client
func NewCardAdapter(c *Client) *CardAdapter {
	return &CardAdapter{c: c}
}

func (a *CardAdapter) Name() string { return "paypal_card" }

func (a *CardAdapter) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	return a.c.sendBatch(ctx, req, buildCardBatch(req, a.c.now()))
}
