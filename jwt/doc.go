// Package jwt issues and verifies the two bearer token classes used by
// goSession: short-lived access tokens and single-use refresh tokens.
//
// Each class is signed with its own key set and carries a signed "cls"
// claim. Verification never performs I/O and is safe on the request hot path.
//
// # What this package must NOT do
//
//   - Touch session storage or decide rotation policy.
//   - Accept a token of one class where the other is expected.
package jwt
