package auth

import (
	"encoding/json"
	"time"
)

// Token is a cached bearer token. A Token is never mutated after it has been
// published; a refresh replaces it.
type Token struct {
	// Value is the opaque bearer credential.
	Value string

	// ExpiresAt is the nominal expiry minus the refresh buffer.
	ExpiresAt time.Time
}

// StaleAt returns the point from which the token is no longer handed out.
func (t *Token) StaleAt(buffer time.Duration) time.Time {
	return t.ExpiresAt.Add(-buffer)
}

// UsableAt reports whether the token can still be handed to a caller at now.
func (t *Token) UsableAt(now time.Time, buffer time.Duration) bool {
	return t != nil && t.Value != "" && now.Before(t.StaleAt(buffer))
}

// tokenResponse is the token endpoint payload.
type tokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type,omitempty"`
	ExpiresIn   int               `json:"expires_in"`
	Errors      []json.RawMessage `json:"errors,omitempty"`
}

// lifetime returns the token lifetime, never shorter than defaultTTL.
func (r tokenResponse) lifetime(defaultTTL time.Duration) time.Duration {
	return max(time.Duration(r.ExpiresIn)*time.Second, defaultTTL)
}
