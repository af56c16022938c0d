package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications"
)

const (
	grantType       = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
	defaultTokenTTL = 3600
	// expirySkew is subtracted from a token's expiry before it is reused.
	expirySkew = 60 * time.Second
)

// ErrNotConfigured is returned when the service account is incomplete.
var ErrNotConfigured = errors.New("firebase is not configured")

// Token is an OAuth2 access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt reports whether the token may still be used at now.
func (t Token) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-expirySkew))
}

// ExchangeError is returned when the token endpoint rejects the assertion.
type ExchangeError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *ExchangeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("token exchange failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("token exchange failed (status %d): %s", e.StatusCode, e.Body)
}

// TokenProvider exchanges a signed service account assertion for an access
// token and caches it until shortly before it expires.
type TokenProvider struct {
	config     Config
	cache      TokenCache
	httpClient *http.Client
	now        func() time.Time

	mu sync.Mutex
}

// NewTokenProvider creates a new token provider. A nil cache means an
// in-process MemoryCache.
func NewTokenProvider(config Config, cache TokenCache) *TokenProvider {
	config = config.withDefaults()
	if cache == nil {
		cache = NewMemoryCache()
	}

	return &TokenProvider{
		config: config,
		cache:  cache,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		now: time.Now,
	}
}

// AccessToken returns a valid access token, exchanging a new one if the
// cached token is missing or about to expire.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	if !p.config.IsConfigured() {
		return "", ErrNotConfigured
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.cacheKey()

	cached, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("failed to read cached firebase token", "error", err)
	}
	if ok && cached.ValidAt(p.now()) {
		notifications.RecordTokenExchange("cached")
		return cached.AccessToken, nil
	}

	token, err := p.Exchange(ctx)
	if err != nil {
		notifications.RecordTokenExchange("error")
		return "", err
	}
	notifications.RecordTokenExchange("success")

	if err := p.cache.Set(ctx, key, token); err != nil {
		slog.Warn("failed to cache firebase token", "error", err)
	}

	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next AccessToken call exchanges
// a new one.
func (p *TokenProvider) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.cache.Delete(ctx, p.cacheKey()); err != nil {
		return fmt.Errorf("delete cached token: %w", err)
	}
	return nil
}

// Exchange performs one JWT bearer grant against the token endpoint.
func (p *TokenProvider) Exchange(ctx context.Context) (Token, error) {
	if !p.config.IsConfigured() {
		return Token{}, ErrNotConfigured
	}

	now := p.now()

	assertion, err := p.signAssertion(now)
	if err != nil {
		return Token{}, err
	}

	form := url.Values{
		"grant_type": {grantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("firebase token request failed", "error", err)
		return Token{}, fmt.Errorf("send token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("firebase token exchange rejected",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return Token{}, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		slog.Error("firebase token response has no access token",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return Token{}, &ExchangeError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    "response has no access_token",
		}
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTokenTTL
	}

	return Token{
		AccessToken: tr.AccessToken,
		ExpiresAt:   now.Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

func (p *TokenProvider) signAssertion(now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalizePrivateKey(p.config.PrivateKey)))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	claims := assertionClaims{
		Scope: MessagingScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.config.ClientEmail,
			Subject:   p.config.ClientEmail,
			Audience:  jwt.ClaimStrings{p.config.TokenURL},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

func (p *TokenProvider) cacheKey() string {
	return "fcm:access_token:" + p.config.ClientEmail
}

// normalizePrivateKey turns escaped newlines from env files into real ones.
func normalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}
