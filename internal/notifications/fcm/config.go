// Package fcm delivers push notifications through Firebase Cloud Messaging
// using a service account.
package fcm

import "time"

// Endpoints and OAuth parameters.
const (
	DefaultTokenURL   = "https://oauth2.googleapis.com/token"
	DefaultAPIBaseURL = "https://fcm.googleapis.com"
	MessagingScope    = "https://www.googleapis.com/auth/firebase.messaging"

	defaultTimeout = 10 * time.Second
)

// Config holds Firebase service account configuration.
type Config struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string // PEM, literal "\n" sequences allowed

	TokenURL   string
	APIBaseURL string
	Timeout    time.Duration
	RateLimit  float64 // sends per second, 0 means unlimited
}

// IsConfigured reports whether all service account fields are present.
func (c Config) IsConfigured() bool {
	return c.ProjectID != "" && c.ClientEmail != "" && c.PrivateKey != ""
}

func (c Config) withDefaults() Config {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
