package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/fleetkit/breaker"
	"github.com/kbukum/fleetkit/logger"
)

// Credential is the outcome of a credential validation.
type Credential struct {
	// Valid reports whether the credential was accepted.
	Valid bool `json:"valid"`
	// Subject is the credential's subject claim, when available.
	Subject string `json:"subject,omitempty"`
	// ExpiresAt is the credential's expiry, when available.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	// Degraded reports that the result came from local verification
	// because the auth dependency's circuit is open.
	Degraded bool `json:"degraded"`
}

// introspection is the auth dependency's response shape.
type introspection struct {
	Active  bool   `json:"active"`
	Subject string `json:"sub"`
	Exp     int64  `json:"exp"`
}

// ValidateCredential validates a bearer token against the auth
// dependency. While that dependency's circuit is open the validation
// degrades to local JWT verification against the configured fallback
// secret, and the result is marked Degraded.
func (c *Client) ValidateCredential(ctx context.Context, token string) (*Credential, error) {
	dep := c.config.Credential.Dependency

	if c.FallbackActive(dep) {
		return c.validateLocal(token)
	}

	resp, err := c.Invoke(ctx, dep, Request{
		Method: http.MethodPost,
		Path:   c.config.Credential.Path,
		Body:   map[string]string{"token": token},
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			// The breaker tripped between the flag read and the call.
			return c.validateLocal(token)
		}
		return nil, err
	}

	var intro introspection
	if err := json.Unmarshal(resp.Body, &intro); err != nil {
		return nil, fmt.Errorf("client: decode introspection response: %w", err)
	}

	cred := &Credential{
		Valid:   intro.Active,
		Subject: intro.Subject,
	}
	if intro.Exp > 0 {
		cred.ExpiresAt = time.Unix(intro.Exp, 0)
	}
	return cred, nil
}

// validateLocal verifies the token signature and expiry locally.
// Rejections are a result, not an error: network problems are the only
// error condition on this path.
func (c *Client) validateLocal(token string) (*Credential, error) {
	secret := c.config.Credential.FallbackSecret
	if secret == "" {
		return nil, fmt.Errorf("client: degraded validation unavailable: no fallback secret configured")
	}

	c.log.Debug("validating credential locally", logger.Fields(
		logger.FieldDependency, c.config.Credential.Dependency,
	))

	parsed, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return &Credential{Valid: false, Degraded: true}, nil
	}

	cred := &Credential{Valid: true, Degraded: true}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		cred.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		cred.ExpiresAt = exp.Time
	}
	return cred, nil
}
