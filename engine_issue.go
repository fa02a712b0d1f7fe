package goSession

import (
	"context"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Issue creates a new session for an already authenticated principal. The
// credential record is committed before any token is returned.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (res *IssueResult, err error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidRequest
	}

	ctx, span := e.startSpan(ctx, "goSession.Issue", attribute.String("user.id", req.UserID))
	defer func() { endSpan(span, err) }()

	grant := flows.Grant{
		UserID:        req.UserID,
		Role:          req.Role,
		App:           req.App,
		DeviceInfo:    req.DeviceInfo,
		ClientAddress: req.ClientAddress,
	}
	device, addr := deviceFromContext(ctx)
	if grant.DeviceInfo == "" {
		grant.DeviceInfo = device
	}
	if grant.ClientAddress == "" {
		grant.ClientAddress = addr
	}

	issued := flows.RunIssue(ctx, grant, e.flows.Issue)
	if issued.Failure != flows.IssueFailureNone {
		err = e.issueError(issued)
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventIssueFailure, false, req.UserID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricIssueSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventIssueSuccess, true, req.UserID, issued.Record.ID, nil, nil)

	return &IssueResult{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		ExpiresIn:    e.config.JWT.AccessTTL,
		SessionID:    issued.Record.ID,
	}, nil
}

func (e *Engine) issueError(res flows.IssueResult) error {
	if res.Failure == flows.IssueFailureCreate {
		e.metricInc(MetricStorageUnavailable)
		return storageError(res.Err)
	}
	return res.Err
}

func registered(userID string) gojwt.RegisteredClaims {
	return gojwt.RegisteredClaims{
		Subject: userID,
		ID:      uuid.NewString(),
	}
}

func unixTime(d *gojwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
