package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/creatorhub/payout-service/internal/model"
	"go.uber.org/zap"
)

type fakePayPal struct {
	tokenCalls  int
	payoutCalls int
	statusCalls int

	tokenStatus  int
	payoutStatus int
	payoutBody   string
	statusBody   string
	statusStatus int
}

func newFakePayPal() *fakePayPal {
	return &fakePayPal{
		tokenStatus:  http.StatusOK,
		payoutStatus: http.StatusCreated,
		payoutBody:   `{"batch_header":{"payout_batch_id":"BATCH123","batch_status":"PENDING"}}`,
		statusStatus: http.StatusOK,
		statusBody:   `{"batch_header":{"payout_batch_id":"BATCH123","batch_status":"SUCCESS"}}`,
	}
}

func (f *fakePayPal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"TOK","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		f.payoutCalls++
		w.WriteHeader(f.payoutStatus)
		w.Write([]byte(f.payoutBody))
	})
	mux.HandleFunc("/v1/payments/payouts/", func(w http.ResponseWriter, r *http.Request) {
		f.statusCalls++
		w.WriteHeader(f.statusStatus)
		w.Write([]byte(f.statusBody))
	})
	return mux
}

func newTestClient(t *testing.T, url string, now func() time.Time) *Client {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	c := NewClient(url, "client-id", "client-secret", 0, 5*time.Second, logger)
	if now != nil {
		c.now = now
		c.tokens.now = now
	}
	return c
}

func accountRequest() *model.WithdrawalRequest {
	return &model.WithdrawalRequest{
		UserID:      "user-1",
		Method:      model.MethodPayPal,
		Amount:      12.5,
		PayPalEmail: "creator@example.com",
	}
}

func TestBuildAccountBatch_AmountAndDefaults(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)
	payload := buildAccountBatch(accountRequest(), ts)

	if len(payload.Items) != 1 {
		t.Fatalf("expected single-item batch, got %d items", len(payload.Items))
	}

	item := payload.Items[0]
	if item.Amount.Value != "12.5" {
		t.Errorf("expected amount value \"12.5\", got %q", item.Amount.Value)
	}
	if item.Amount.Currency != "USD" {
		t.Errorf("expected default currency USD, got %q", item.Amount.Currency)
	}
	if item.RecipientType != "EMAIL" {
		t.Errorf("expected recipient_type EMAIL, got %q", item.RecipientType)
	}
	if item.Receiver != "creator@example.com" {
		t.Errorf("expected receiver to be the PayPal email, got %q", item.Receiver)
	}

	// The value must be the literal string on the wire, not a float
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if !strings.Contains(string(data), `"value":"12.5"`) {
		t.Errorf("expected literal string amount in JSON, got: %s", data)
	}
}

func TestBuildAccountBatch_Deterministic(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)
	a := buildAccountBatch(accountRequest(), ts)
	b := buildAccountBatch(accountRequest(), ts)

	if a.SenderBatchHeader.SenderBatchID != b.SenderBatchHeader.SenderBatchID {
		t.Errorf("expected identical batch ids for identical timestamps, got %q vs %q",
			a.SenderBatchHeader.SenderBatchID, b.SenderBatchHeader.SenderBatchID)
	}
	if a.Items[0].SenderItemID != b.Items[0].SenderItemID {
		t.Errorf("expected identical item ids for identical timestamps")
	}
}

func TestBuildCardBatch_PhoneReceiver(t *testing.T) {
	req := &model.WithdrawalRequest{
		UserID:      "user-1",
		Method:      model.MethodPayPalCard,
		Amount:      40,
		Currency:    "EUR",
		PhoneNumber: "+255700000001",
	}
	payload := buildCardBatch(req, time.Now())

	item := payload.Items[0]
	if item.RecipientType != "PHONE" {
		t.Errorf("expected recipient_type PHONE, got %q", item.RecipientType)
	}
	if item.Receiver != "+255700000001" {
		t.Errorf("expected receiver to be the phone number, got %q", item.Receiver)
	}
	if item.Amount.Currency != "EUR" {
		t.Errorf("expected explicit currency to be kept, got %q", item.Amount.Currency)
	}
}

func TestAccountAdapter_Dispatch_Success(t *testing.T) {
	fake := newFakePayPal()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	adapter := NewAccountAdapter(c)

	result, err := adapter.Dispatch(context.Background(), accountRequest())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.Status != model.PayoutStatusProcessing {
		t.Errorf("expected status processing, got %q", result.Status)
	}
	if result.ProviderReference != "BATCH123" {
		t.Errorf("expected provider reference BATCH123, got %q", result.ProviderReference)
	}
	if result.InternalReference == "" {
		t.Error("expected internal reference to be set")
	}
}

func TestTokenCache_ReusedWithinValidity(t *testing.T) {
	fake := newFakePayPal()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	base := time.Unix(1700000000, 0)
	now := base
	c := newTestClient(t, server.URL, func() time.Time { return now })
	adapter := NewAccountAdapter(c)

	for i := 0; i < 2; i++ {
		if _, err := adapter.Dispatch(context.Background(), accountRequest()); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	if fake.tokenCalls != 1 {
		t.Errorf("expected exactly one token fetch within validity window, got %d", fake.tokenCalls)
	}
	if fake.payoutCalls != 2 {
		t.Errorf("expected two payout calls, got %d", fake.payoutCalls)
	}
}

func TestTokenCache_RefetchedAfterExpiry(t *testing.T) {
	fake := newFakePayPal()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	base := time.Unix(1700000000, 0)
	now := base
	c := newTestClient(t, server.URL, func() time.Time { return now })
	adapter := NewAccountAdapter(c)

	if _, err := adapter.Dispatch(context.Background(), accountRequest()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	// Past the 3600s lifetime the fake reports
	now = base.Add(2 * time.Hour)

	if _, err := adapter.Dispatch(context.Background(), accountRequest()); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	if fake.tokenCalls != 2 {
		t.Errorf("expected a second token fetch after expiry, got %d", fake.tokenCalls)
	}
}

func TestTokenCache_InvalidateForcesRefetch(t *testing.T) {
	fake := newFakePayPal()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	if _, err := c.tokens.Token(context.Background()); err != nil {
		t.Fatalf("first token: %v", err)
	}
	c.tokens.Invalidate()
	if _, err := c.tokens.Token(context.Background()); err != nil {
		t.Fatalf("second token: %v", err)
	}

	if fake.tokenCalls != 2 {
		t.Errorf("expected refetch after Invalidate, got %d fetches", fake.tokenCalls)
	}
}

func TestDispatch_AuthenticationFailure(t *testing.T) {
	fake := newFakePayPal()
	fake.tokenStatus = http.StatusUnauthorized
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	adapter := NewAccountAdapter(c)

	_, err := adapter.Dispatch(context.Background(), accountRequest())
	if !errors.Is(err, model.ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got: %v", err)
	}
	if fake.payoutCalls != 0 {
		t.Errorf("expected no payout call after auth failure, got %d", fake.payoutCalls)
	}
}

func TestDispatch_ProviderRejection(t *testing.T) {
	fake := newFakePayPal()
	fake.payoutStatus = http.StatusUnprocessableEntity
	fake.payoutBody = `{"name":"INSUFFICIENT_FUNDS","message":"Sender does not have sufficient funds"}`
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	adapter := NewAccountAdapter(c)

	_, err := adapter.Dispatch(context.Background(), accountRequest())
	if !errors.Is(err, model.ErrPayoutFailed) {
		t.Fatalf("expected ErrPayoutFailed, got: %v", err)
	}
	if !strings.Contains(err.Error(), "sufficient funds") {
		t.Errorf("expected provider message to be surfaced, got: %v", err)
	}
}

func TestDispatch_UnauthorizedInvalidatesToken(t *testing.T) {
	fake := newFakePayPal()
	fake.payoutStatus = http.StatusUnauthorized
	fake.payoutBody = `{}`
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	adapter := NewAccountAdapter(c)

	_, err := adapter.Dispatch(context.Background(), accountRequest())
	if !errors.Is(err, model.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got: %v", err)
	}

	// Cached token was dropped; the next dispatch fetches a fresh one
	fake.payoutStatus = http.StatusCreated
	fake.payoutBody = `{"batch_header":{"payout_batch_id":"BATCH124","batch_status":"PENDING"}}`
	if _, err := adapter.Dispatch(context.Background(), accountRequest()); err != nil {
		t.Fatalf("dispatch after refetch: %v", err)
	}
	if fake.tokenCalls != 2 {
		t.Errorf("expected token refetch after 401, got %d fetches", fake.tokenCalls)
	}
}

func TestVerify_LowercasesBatchStatus(t *testing.T) {
	fake := newFakePayPal()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	result, err := c.Verify(context.Background(), "BATCH123")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("expected lowercased status \"success\", got %q", result.Status)
	}
	if result.Details == nil {
		t.Error("expected raw details to be kept")
	}
}

func TestVerify_FailureIsNotAFabricatedStatus(t *testing.T) {
	fake := newFakePayPal()
	fake.statusStatus = http.StatusInternalServerError
	fake.statusBody = `{}`
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	result, err := c.Verify(context.Background(), "BATCH123")
	if !errors.Is(err, model.ErrVerificationFailed) {
		t.Errorf("expected ErrVerificationFailed, got: %v", err)
	}
	if result != nil {
		t.Errorf("expected no result on verification failure, got: %+v", result)
	}
}
