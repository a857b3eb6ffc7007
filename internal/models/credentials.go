package models

import "strings"

// Credentials is the exchange API key pair the backend trades with.
// The client never inspects it beyond checking that both halves are present.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Complete reports whether both halves are non-blank.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Masked returns the key with everything but the last four characters hidden.
func (c Credentials) Masked() string {
	k := strings.TrimSpace(c.APIKey)
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}
