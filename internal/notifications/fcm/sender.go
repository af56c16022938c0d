package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications"
	"golang.org/x/time/rate"
)

const (
	minDeviceTokenLength = 100
	loggedTokenPrefix    = 20
)

// Outcome messages.
const (
	MsgNotConfigured         = "Firebase is not configured"
	MsgInvalidToken          = "Invalid device token"
	MsgMalformedToken        = "Invalid FCM token format"
	MsgCredentialUnavailable = "Could not generate Firebase access token"
	MsgDelivered             = "Notification sent successfully"
	MsgSendFailed            = "Failed to send notification"
)

var deviceTokenPattern = regexp.MustCompile(`^[A-Za-z0-9:_-]+$`)

// Known FCM error codes.
var errorCodeMessages = map[string]string{
	"UNREGISTERED":       "token no longer valid",
	"INVALID_ARGUMENT":   "invalid token format",
	"SENDER_ID_MISMATCH": "token belongs to different project",
}

// AccessTokenSource supplies bearer tokens for the FCM API.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	// Invalidate discards the current token after the API rejected it.
	Invalidate(ctx context.Context) error
}

// Sender delivers push notifications through the FCM HTTP v1 API.
type Sender struct {
	config     Config
	tokens     AccessTokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new FCM sender.
func NewSender(config Config, tokens AccessTokenSource) *Sender {
	config = config.withDefaults()

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	slog.Info("fcm sender configured",
		"configured", config.IsConfigured(),
		"project_id", config.ProjectID,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: limiter,
	}
}

// Send delivers msg to one device. Every failure is returned as an outcome.
func (s *Sender) Send(ctx context.Context, deviceToken string, msg notifications.PushMessage) (outcome notifications.DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fcm send panicked", "panic", r)
			outcome = failure(notifications.ReasonTransport, fmt.Sprintf("%s: %v", MsgSendFailed, r))
		}
	}()

	if !s.config.IsConfigured() {
		return failure(notifications.ReasonNotConfigured, MsgNotConfigured)
	}

	if deviceToken == "" {
		return failure(notifications.ReasonInvalidToken, MsgInvalidToken)
	}

	if len(deviceToken) < minDeviceTokenLength || !deviceTokenPattern.MatchString(deviceToken) {
		slog.Warn("invalid fcm token format",
			"token_prefix", tokenPrefix(deviceToken),
			"length", len(deviceToken),
		)
		return failure(notifications.ReasonMalformedToken, MsgMalformedToken)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return failure(notifications.ReasonTransport, fmt.Sprintf("%s: rate limit wait: %v", MsgSendFailed, err))
		}
	}

	accessToken, err := s.tokens.AccessToken(ctx)
	if err != nil {
		slog.Error("failed to get firebase access token", "error", err)
		return failure(notifications.ReasonCredentialUnavailable, MsgCredentialUnavailable)
	}

	body, err := json.Marshal(newMessage(deviceToken, msg.Title, msg.Body, msg.Data))
	if err != nil {
		return failure(notifications.ReasonTransport, fmt.Sprintf("%s: marshal message: %v", MsgSendFailed, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL(), bytes.NewReader(body))
	if err != nil {
		return failure(notifications.ReasonTransport, fmt.Sprintf("%s: %v", MsgSendFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Warn("fcm request failed", "token_prefix", tokenPrefix(deviceToken), "error", err)
		return failure(notifications.ReasonTransport, fmt.Sprintf("%s: %v", MsgSendFailed, err))
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(ctx, resp, deviceToken)
}

func (s *Sender) handleResponse(ctx context.Context, resp *http.Response, deviceToken string) notifications.DeliveryOutcome {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(notifications.ReasonTransport, fmt.Sprintf("%s: read response: %v", MsgSendFailed, err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("fcm message sent", "token_prefix", tokenPrefix(deviceToken))
		return notifications.DeliveryOutcome{
			Success: true,
			Message: MsgDelivered,
			Reason:  notifications.ReasonDelivered,
		}
	}

	if isUnauthenticated(resp.StatusCode, body) {
		if err := s.tokens.Invalidate(ctx); err != nil {
			slog.Warn("failed to invalidate firebase access token", "error", err)
		}
	}

	message := describeError(body)
	slog.Warn("fcm rejected message",
		"status", resp.StatusCode,
		"token_prefix", tokenPrefix(deviceToken),
		"message", message,
	)
	return failure(notifications.ReasonProviderRejected, message)
}

func (s *Sender) sendURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/messages:send", s.config.APIBaseURL, s.config.ProjectID)
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// describeError extracts a readable reason from an FCM error body.
func describeError(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return MsgSendFailed
	}

	if resp.Error.Message != "" {
		return resp.Error.Message
	}

	code := resp.Error.Status
	for _, d := range resp.Error.Details {
		if d.ErrorCode != "" {
			code = d.ErrorCode
			break
		}
	}
	if code == "" {
		return MsgSendFailed
	}

	if msg, ok := errorCodeMessages[code]; ok {
		return msg
	}
	return "Firebase error: " + code
}

// isUnauthenticated reports whether FCM rejected the bearer token.
func isUnauthenticated(statusCode int, body []byte) bool {
	if statusCode == http.StatusUnauthorized {
		return true
	}
	var resp errorResponse
	return json.Unmarshal(body, &resp) == nil && resp.Error.Status == "UNAUTHENTICATED"
}

func failure(reason notifications.Reason, message string) notifications.DeliveryOutcome {
	return notifications.DeliveryOutcome{
		Success: false,
		Message: message,
		Reason:  reason,
	}
}

// tokenPrefix shortens a device token for logging.
func tokenPrefix(token string) string {
	if len(token) > loggedTokenPrefix {
		return token[:loggedTokenPrefix] + "..."
	}
	return token
}
