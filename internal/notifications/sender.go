package notifications

import "context"

// Reason classifies the outcome of a single push delivery.
type Reason string

// Delivery reasons.
const (
	ReasonDelivered             Reason = "delivered"
	ReasonNotConfigured         Reason = "not_configured"
	ReasonInvalidToken          Reason = "invalid_token"
	ReasonMalformedToken        Reason = "malformed_token"
	ReasonCredentialUnavailable Reason = "credential_unavailable"
	ReasonProviderRejected      Reason = "provider_rejected"
	ReasonTransport             Reason = "transport"
)

// PushMessage is the content delivered to one device.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]any
}

// DeliveryOutcome is the classified result of one push attempt.
type DeliveryOutcome struct {
	Success bool
	Message string
	Reason  Reason
}

// Sender delivers a push message to a single device.
// Implementations never return an error: every failure is classified
// into the outcome.
type Sender interface {
	Send(ctx context.Context, deviceToken string, msg PushMessage) DeliveryOutcome
}
