package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/session"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSecret
	IssueFailureRecordID
	IssueFailureMint
	IssueFailureCreate
)

// Grant is what a new session is issued for.
type Grant struct {
	UserID        string
	Role          string
	App           map[string]string
	DeviceInfo    string
	ClientAddress string
}

// IssueResult carries the committed record and its token pair, or failure
// metadata.
type IssueResult struct {
	Failure      IssueFailureKind
	Err          error
	Record       session.Record
	AccessToken  string
	RefreshToken string
}

// IssueDeps captures issuance dependencies.
type IssueDeps struct {
	Now          func() time.Time
	RefreshTTL   time.Duration
	NewSecret    func() (internal.RefreshSecret, error)
	Digest       func(internal.RefreshSecret) [32]byte
	NewRecordID  func(time.Time) (string, error)
	IssueAccess  func(userID, role string, app map[string]string) (string, error)
	IssueRefresh func(userID, role, secret string) (string, error)
	Repository   session.Repository
}

// RunIssue mints a fresh secret, signs both tokens and commits the record.
// Tokens are only returned once Create succeeded.
func RunIssue(ctx context.Context, grant Grant, deps IssueDeps) IssueResult {
	secret, err := deps.NewSecret()
	if err != nil {
		return IssueResult{Failure: IssueFailureSecret, Err: err}
	}

	now := nowFrom(deps.Now)
	id, err := deps.NewRecordID(now)
	if err != nil {
		return IssueResult{Failure: IssueFailureRecordID, Err: err}
	}

	access, err := deps.IssueAccess(grant.UserID, grant.Role, grant.App)
	if err != nil {
		return IssueResult{Failure: IssueFailureMint, Err: err}
	}
	refresh, err := deps.IssueRefresh(grant.UserID, grant.Role, secret.String())
	if err != nil {
		return IssueResult{Failure: IssueFailureMint, Err: err}
	}

	rec := session.Record{
		ID:               id,
		UserID:           grant.UserID,
		CredentialDigest: deps.Digest(secret),
		CreatedAt:        now,
		ExpiresAt:        now.Add(deps.RefreshTTL),
		DeviceInfo:       grant.DeviceInfo,
		ClientAddress:    grant.ClientAddress,
	}
	if err := deps.Repository.Create(ctx, rec); err != nil {
		return IssueResult{Failure: IssueFailureCreate, Err: err, Record: rec}
	}

	return IssueResult{
		Failure:      IssueFailureNone,
		Record:       rec,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
