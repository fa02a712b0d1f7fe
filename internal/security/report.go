package security

import "time"

// Report is the effective security posture of an engine. It never carries
// key material.
type Report struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Leeway                time.Duration
	IssuerPinned          bool
	AudiencePinned        bool
	KeyRotationConfigured bool
	ExplicitDigestKey     bool
	LogoutMismatchIsError bool
	RefreshThrottleActive bool
	ReplayTrackingActive  bool
	AuditEnabled          bool
	AuditMayDrop          bool
	MetricsEnabled        bool
	HealthCheckSupported  bool
	// Warnings lists posture findings an operator should look at. Empty for a
	// hardened configuration.
	Warnings []string
}

type ReportInput struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Leeway                time.Duration
	Issuer                string
	Audience              string
	AccessVerifyKeys      int
	RefreshVerifyKeys     int
	DigestKeyLength       int
	LogoutMismatchIsError bool
	RefreshThrottle       bool
	ReplayTracking        bool
	AuditEnabled          bool
	AuditDropIfFull       bool
	MetricsEnabled        bool
	Pingable              bool
}

const (
	recommendedMaxAccessTTL = 15 * time.Minute
	recommendedMaxLeeway    = 30 * time.Second
)

func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:        input.ProductionMode,
		SigningAlgorithm:      input.SigningAlgorithm,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		Leeway:                input.Leeway,
		IssuerPinned:          input.Issuer != "",
		AudiencePinned:        input.Audience != "",
		KeyRotationConfigured: input.AccessVerifyKeys > 1 || input.RefreshVerifyKeys > 1,
		ExplicitDigestKey:     input.DigestKeyLength > 0,
		LogoutMismatchIsError: input.LogoutMismatchIsError,
		RefreshThrottleActive: input.RefreshThrottle,
		ReplayTrackingActive:  input.ReplayTracking,
		AuditEnabled:          input.AuditEnabled,
		AuditMayDrop:          input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:        input.MetricsEnabled,
		HealthCheckSupported:  input.Pingable,
	}
	r.Warnings = findings(r)
	return r
}

func findings(r Report) []string {
	var out []string
	if r.AccessTTL > recommendedMaxAccessTTL {
		out = append(out, "access TTL exceeds 15m; revocation takes effect only when access tokens expire")
	}
	if r.Leeway > recommendedMaxLeeway {
		out = append(out, "clock leeway exceeds 30s")
	}
	if !r.ExplicitDigestKey {
		out = append(out, "refresh digest key is derived from the refresh signing key; rotating that key invalidates every session")
	}
	if !r.IssuerPinned {
		out = append(out, "issuer is not pinned")
	}
	if r.SigningAlgorithm == "hs256" {
		out = append(out, "hs256 keys must stay private to every verifier")
	}
	if !r.AuditEnabled {
		out = append(out, "audit is disabled; refresh reuse will only show up in metrics")
	} else if r.AuditMayDrop {
		out = append(out, "audit drops events when its buffer is full")
	}
	if !r.HealthCheckSupported {
		out = append(out, "session repository does not support health checks")
	}
	return out
}
