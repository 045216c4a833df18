package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/creatorhub/payout-service/internal/model"
)

// TokenSource owns the cached PayPal OAuth bearer token. The token is
// fetched lazily on first use via the client_credentials grant, reused
// while unexpired, and refetched after Invalidate. Concurrent refreshes
// serialize on the mutex; the grant is idempotent on the provider side.
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	skew         time.Duration
	httpClient   *http.Client
	now          func() time.Time

	mu         sync.Mutex
	value      string
	obtainedAt time.Time
	expiresAt  time.Time

	onRefresh func()
}

// SetRefreshHook installs a callback invoked after each successful token
// fetch, used for metrics
func (t *TokenSource) SetRefreshHook(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRefresh = f
}

// NewTokenSource creates a token source for the given PayPal environment.
// skew is subtracted from the provider-reported lifetime so a token is
// never used right at its expiry edge.
func NewTokenSource(baseURL, clientID, clientSecret string, skew time.Duration, httpClient *http.Client) *TokenSource {
	return &TokenSource{
		tokenURL:     baseURL + "/v1/oauth2/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		skew:         skew,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token returns the cached bearer token, fetching a fresh one if none is
// cached or the cached one has expired.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.value != "" && t.now().Before(t.expiresAt) {
		return t.value, nil
	}

	token, expiresIn, err := t.fetch(ctx)
	if err != nil {
		// Leave any cached value untouched; the next call retries
		return "", err
	}

	t.value = token
	t.obtainedAt = t.now()
	t.expiresAt = t.obtainedAt.Add(time.Duration(expiresIn)*time.Second - t.skew)
	if t.onRefresh != nil {
		t.onRefresh()
	}
	return t.value, nil
}

// Invalidate drops the cached token so the next Token call refetches.
// Called after an authentication-class failure downstream.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = ""
	t.expiresAt = time.Time{}
}

func (t *TokenSource) fetch(ctx context.Context) (string, int64, error) {
	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, body)
	if err != nil {
		return "", 0, model.NewProviderError(model.ErrAuthenticationFailed, "paypal", "", err.Error())
	}

	auth := base64.StdEncoding.EncodeToString([]byte(t.clientID + ":" + t.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, model.NewProviderError(model.ErrAuthenticationFailed, "paypal", "", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", 0, model.NewProviderError(model.ErrAuthenticationFailed, "paypal", "",
			fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(respBody)))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, model.NewProviderError(model.ErrAuthenticationFailed, "paypal", "", "malformed token response: "+err.Error())
	}
	if result.AccessToken == "" {
		return "", 0, model.NewProviderError(model.ErrAuthenticationFailed, "paypal", "", "token response missing access_token")
	}

	return result.AccessToken, result.ExpiresIn, nil
}
