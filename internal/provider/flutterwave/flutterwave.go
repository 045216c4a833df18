package flutterwave

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

// Client talks to the Flutterwave v3 API. Auth is the static secret key
// on every call; there is no token lifecycle.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a Flutterwave client
func NewClient(baseURL, secretKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Wire types

type chargePayload struct {
	CardNumber  string `json:"card_number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	FullName    string `json:"fullname"`
	Email       string `json:"email"`
	TxRef       string `json:"tx_ref"`
}

type chargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		FlwRef string `json:"flw_ref"`
		Status string `json:"status"`
	} `json:"data"`
	Meta struct {
		Authorization struct {
			Mode string `json:"mode"`
		} `json:"authorization"`
	} `json:"meta"`
}

type transferPayload struct {
	AccountBank     string  `json:"account_bank"`
	AccountNumber   string  `json:"account_number"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Narration       string  `json:"narration"`
	Reference       string  `json:"reference"`
	BeneficiaryName string  `json:"beneficiary_name"`
}

type transferResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// chargeOutcome is the three-way decision a card charge can land on. A
// charge is not necessarily terminal after one HTTP call: the issuer may
// demand a PIN or OTP step-up before authorizing.
type chargeOutcome int

const (
	chargeCompleted chargeOutcome = iota
	chargeRequiresPin
	chargeRequiresOtp
)

// buildChargePayload translates the withdrawal into the card-charge wire
// shape. Malformed instrument fields are rejected, not coerced.
func buildChargePayload(req *model.WithdrawalRequest, ts time.Time) (chargePayload, error) {
	parts := strings.Split(req.ExpiryDate, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return chargePayload{}, model.NewProviderError(model.ErrInvalidInstrument, "flutterwave", req.Method,
			"expiryDate must be MM/YY, got "+strconv.Quote(req.ExpiryDate))
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	return chargePayload{
		CardNumber:  strings.ReplaceAll(req.CardNumber, " ", ""),
		CVV:         req.CVV,
		ExpiryMonth: strings.TrimSpace(parts[0]),
		ExpiryYear:  strings.TrimSpace(parts[1]),
		Currency:    currency,
		Amount:      strconv.FormatFloat(req.Amount, 'f', -1, 64),
		FullName:    req.FullName,
		Email:       req.Email,
		TxRef:       fmt.Sprintf("card-payout-%d-%s", ts.UnixNano(), req.UserID),
	}, nil
}

// buildTransferPayload translates the withdrawal into the mobile-money
// transfer wire shape for the given rail bank code.
func buildTransferPayload(req *model.WithdrawalRequest, bankCode, rail string, ts time.Time) transferPayload {
	currency := req.Currency
	if currency == "" {
		currency = "TZS"
	}
	narration := req.Note
	if narration == "" {
		narration = "Creator earnings payout"
	}
	return transferPayload{
		AccountBank:     bankCode,
		AccountNumber:   req.PhoneNumber,
		Amount:          req.Amount,
		Currency:        currency,
		Narration:       narration,
		Reference:       fmt.Sprintf("%s-payout-%d-%s", rail, ts.UnixNano(), req.UserID),
		BeneficiaryName: req.FullName,
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// chargeCard POSTs the card charge and interprets the step-up branches
func (c *Client) chargeCard(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	payload, err := buildChargePayload(req, c.now())
	if err != nil {
		return nil, err
	}

	statusCode, body, err := c.post(ctx, "/charges?type=card", payload)
	if err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "flutterwave", req.Method, err.Error())
	}

	var parsed chargeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "flutterwave", req.Method,
			fmt.Sprintf("malformed charge response (%d): %s", statusCode, string(body)))
	}

	providerRef := parsed.Data.FlwRef
	if providerRef == "" && parsed.Data.ID != 0 {
		providerRef = strconv.FormatInt(parsed.Data.ID, 10)
	}

	outcome, err := interpretCharge(statusCode, &parsed, req.Method)
	if err != nil {
		return nil, err
	}

	result := &model.PayoutResult{
		Success:           true,
		ProviderReference: providerRef,
		InternalReference: payload.TxRef,
	}

	switch outcome {
	case chargeRequiresPin:
		result.Status = model.PayoutStatusPending
		result.RequiresAction = model.ActionPin
		result.Message = "Card charge awaiting PIN authorization"
	case chargeRequiresOtp:
		result.Status = model.PayoutStatusPending
		result.RequiresAction = model.ActionOtp
		result.Message = "Card charge awaiting OTP authorization"
	case chargeCompleted:
		result.Status = model.PayoutStatusCompleted
		result.Message = "Card charge completed"
	}

	c.logger.Info("Flutterwave card charge dispatched",
		zap.String("txRef", payload.TxRef),
		zap.String("status", string(result.Status)),
		zap.String("requiresAction", string(result.RequiresAction)),
	)

	return result, nil
}

// interpretCharge is the one real state-machine decision in the subsystem:
// pin / otp step-up take precedence, then a terminal success, anything
// else is a provider rejection.
func interpretCharge(statusCode int, resp *chargeResponse, method model.Method) (chargeOutcome, error) {
	switch resp.Meta.Authorization.Mode {
	case "pin":
		return chargeRequiresPin, nil
	case "otp":
		return chargeRequiresOtp, nil
	}

	if statusCode >= 200 && statusCode < 300 && resp.Status == "success" {
		return chargeCompleted, nil
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("charge endpoint returned %d", statusCode)
	}
	return 0, model.NewProviderError(model.ErrPayoutFailed, "flutterwave", method, msg)
}

// transfer POSTs a mobile-money transfer for the given rail
func (c *Client) transfer(ctx context.Context, req *model.WithdrawalRequest, bankCode, rail string) (*model.PayoutResult, error) {
	payload := buildTransferPayload(req, bankCode, rail, c.now())

	statusCode, body, err := c.post(ctx, "/transfers", payload)
	if err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "flutterwave", req.Method, err.Error())
	}

	var parsed transferResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, model.NewProviderError(model.ErrPayoutFailed, "flutterwave", req.Method,
			fmt.Sprintf("malformed transfer response (%d): %s", statusCode, string(body)))
	}

	if statusCode < 200 || statusCode >= 300 || parsed.Status != "success" {
		msg := parsed.Message
		if msg == "" {
			msg = fmt.Sprintf("transfer endpoint returned %d", statusCode)
		}
		return nil, model.NewProviderError(model.ErrPayoutFailed, "flutterwave", req.Method, msg)
	}

	c.logger.Info("Flutterwave transfer accepted",
		zap.String("reference", payload.Reference),
		zap.String("rail", rail),
		zap.Int64("transferId", parsed.Data.ID),
	)

	return &model.PayoutResult{
		Success:           true,
		Status:            model.PayoutStatusProcessing,
		ProviderReference: strconv.FormatInt(parsed.Data.ID, 10),
		InternalReference: payload.Reference,
		Message:           "Transfer queued with provider",
	}, nil
}

// Verify queries the transfers-status endpoint. The provider's status
// string is returned unmodified; Flutterwave and PayPal vocabularies are
// not unified at this layer.
func (c *Client) Verify(ctx context.Context, reference string) (*model.VerificationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transfers/"+reference, nil)
	if err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "flutterwave", "", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "flutterwave", "", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "flutterwave", "", "read response: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "flutterwave", "",
			fmt.Sprintf("status endpoint returned %d: %s", resp.StatusCode, string(body)))
	}

	var details map[string]interface{}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "flutterwave", "", "malformed status response: "+err.Error())
	}

	status := ""
	if data, ok := details["data"].(map[string]interface{}); ok {
		if s, ok := data["status"].(string); ok {
			status = s
		}
	}
	if status == "" {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "flutterwave", "", "status response missing transfer status")
	}

	return &model.VerificationResult{Status: status, Details: details}, nil
}

// CardAdapter is the Flutterwave card-charge rail, shared by the visa,
// mastercard and amex methods
type CardAdapter struct {
	c *Client
}

// NewCardAdapter binds the card rail to a client
func NewCardAdapter(c *Client) *CardAdapter {
	return &CardAdapter{c: c}
}

func (a *CardAdapter) Name() string { return "flutterwave_card" }

func (a *CardAdapter) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	return a.c.chargeCard(ctx, req)
}

// TransferAdapter is one mobile-money rail. The rails differ only in the
// fixed account_bank code.
type TransferAdapter struct {
	c        *Client
	rail     string
	bankCode string
}

// NewTransferAdapter binds one mobile-money rail to a client
func NewTransferAdapter(c *Client, rail, bankCode string) *TransferAdapter {
	return &TransferAdapter{c: c, rail: rail, bankCode: bankCode}
}

func (a *TransferAdapter) Name() string { return "flutterwave_" + a.rail }

func (a *TransferAdapter) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	return a.c.transfer(ctx, req, a.bankCode, a.rail)
}
