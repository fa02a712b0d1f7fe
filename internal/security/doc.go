// Package security derives an engine's security posture report from its
// effective configuration. It is pure: no I/O and no key material.
package security
