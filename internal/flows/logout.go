package flows

import (
	"context"
)

// LogoutFailureKind classifies logout outcomes for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	// LogoutFailureNoMatch means nothing was revoked because the token did not
	// verify, belonged to another user or matched no active record.
	LogoutFailureNoMatch
	LogoutFailureStorage
)

// LogoutResult reports what a logout changed.
type LogoutResult struct {
	Failure  LogoutFailureKind
	Err      error
	All      bool
	RecordID string
	Revoked  int
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Credentials CredentialDeps
}

// RunLogout revokes the record matching refreshToken, or every record of the
// user when refreshToken is empty. A second call with the same token is a
// no-match, never an error.
func RunLogout(ctx context.Context, userID, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" {
		return RunLogoutAll(ctx, userID, deps)
	}

	claims, digest, err := deps.Credentials.presentedDigest(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureNoMatch, Err: err}
	}
	if claims.Subject != userID {
		return LogoutResult{Failure: LogoutFailureNoMatch}
	}

	repo := deps.Credentials.Repository
	candidates, err := repo.ListActive(ctx, userID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStorage, Err: err}
	}
	matched, ok := matchRecord(candidates, digest)
	if !ok {
		return LogoutResult{Failure: LogoutFailureNoMatch}
	}

	changed, err := repo.Revoke(ctx, matched.ID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStorage, Err: err, RecordID: matched.ID}
	}
	res := LogoutResult{RecordID: matched.ID}
	if changed {
		res.Revoked = 1
	}
	return res
}

// RunLogoutAll revokes every record of the user.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) LogoutResult {
	n, err := deps.Credentials.Repository.RevokeAll(ctx, userID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStorage, Err: err, All: true}
	}
	return LogoutResult{All: true, Revoked: n}
}

// RunRevokeSession revokes recordID only if it is one of the user's active
// records.
func RunRevokeSession(ctx context.Context, userID, recordID string, deps LogoutDeps) LogoutResult {
	repo := deps.Credentials.Repository
	candidates, err := repo.ListActive(ctx, userID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStorage, Err: err}
	}

	owned := false
	for _, rec := range candidates {
		if rec.ID == recordID {
			owned = true
			break
		}
	}
	if !owned {
		return LogoutResult{Failure: LogoutFailureNoMatch, RecordID: recordID}
	}

	changed, err := repo.Revoke(ctx, recordID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStorage, Err: err, RecordID: recordID}
	}
	res := LogoutResult{RecordID: recordID}
	if changed {
		res.Revoked = 1
	}
	return res
}
