package goSession

import (
	internalsecurity "github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/session"
)

// SecurityReport summarizes the effective security posture of an engine.
// It never includes key material.
type SecurityReport = internalsecurity.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, pingable := e.repo.(session.Pinger)
	cfg := e.config

	return internalsecurity.BuildReport(internalsecurity.ReportInput{
		ProductionMode:        cfg.Security.ProductionMode,
		SigningAlgorithm:      cfg.JWT.SigningMethod,
		AccessTTL:             cfg.JWT.AccessTTL,
		RefreshTTL:            cfg.JWT.RefreshTTL,
		Leeway:                cfg.JWT.Leeway,
		Issuer:                cfg.JWT.Issuer,
		Audience:              cfg.JWT.Audience,
		AccessVerifyKeys:      len(cfg.JWT.AccessVerifyKeys),
		RefreshVerifyKeys:     len(cfg.JWT.RefreshVerifyKeys),
		DigestKeyLength:       len(cfg.Session.DigestKey),
		LogoutMismatchIsError: cfg.Security.LogoutMismatchIsError,
		RefreshThrottle:       e.rateLimiter != nil,
		ReplayTracking:        e.replayTracker != nil,
		AuditEnabled:          e.audit != nil,
		AuditDropIfFull:       cfg.Audit.DropIfFull,
		MetricsEnabled:        e.metrics.Enabled(),
		Pingable:              pingable,
	})
}
