package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Authenticate verifies an access token and returns the identity it
// carries. It performs no I/O.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer e.observe(MetricAuthenticateLatency, start)

	res := flows.RunAuthenticate(accessToken, e.flows.Authenticate)
	switch res.Failure {
	case flows.AuthenticateFailureNone:
	case flows.AuthenticateFailureExpired:
		e.metricInc(MetricAuthenticateExpired)
		return nil, tokenError(res.Err)
	case flows.AuthenticateFailureTypeMismatch:
		e.metricInc(MetricAuthenticateTypeMismatch)
		return nil, tokenError(res.Err)
	default:
		e.metricInc(MetricAuthenticateFailure)
		return nil, tokenError(res.Err)
	}

	e.metricInc(MetricAuthenticateSuccess)

	c := res.Claims
	claims := map[string]any{
		"sub": c.Subject,
		"cls": string(c.Class),
		"iat": unixTime(c.IssuedAt).Unix(),
		"exp": unixTime(c.ExpiresAt).Unix(),
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = []string(c.Audience)
	}
	if c.ID != "" {
		claims["jti"] = c.ID
	}

	return &Identity{
		Subject:   c.Subject,
		Role:      c.Role,
		App:       c.App,
		IssuedAt:  unixTime(c.IssuedAt),
		ExpiresAt: unixTime(c.ExpiresAt),
		Claims:    claims,
	}, nil
}
