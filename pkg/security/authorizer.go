// Package security provides the default clearance-based Authorizer and a small
// bearer token issuer for callers that have no authentication layer of their own.
package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harun/toolengine/internal/tracing"
	te "github.com/harun/toolengine/pkg/toolexecutor"
)

var (
	ErrCredentialsExpired = errors.New("credentials expired")
	ErrRequesterRevoked   = errors.New("requester revoked")
	ErrUnknownToken       = errors.New("unknown token")
)

// Options configures a ClearanceAuthorizer.
type Options struct {
	// RevocationPath persists revoked requester ids; empty keeps them in memory
	RevocationPath string
	// TokenPath persists issued tokens (by digest); empty keeps them in memory
	TokenPath string
	// Revoked seeds the revocation list
	Revoked []string
	Now     func() time.Time
}

// ClearanceAuthorizer admits credentials whose level is at least the tool's minimum.
// Expired credentials and revoked requesters are rejected with an error, which the
// engine reports as AUTHENTICATION_REQUIRED.
type ClearanceAuthorizer struct {
	now func() time.Time

	revocations *revocationStore
	tokens      *tokenStore
}

var _ te.Authorizer = (*ClearanceAuthorizer)(nil)

// NewClearanceAuthorizer creates an authorizer, loading any persisted revocations.
func NewClearanceAuthorizer(opts Options) (*ClearanceAuthorizer, error) {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	revocations, err := newRevocationStore(strings.TrimSpace(opts.RevocationPath), nowFn)
	if err != nil {
		return nil, err
	}
	tokens, err := newTokenStore(strings.TrimSpace(opts.TokenPath))
	if err != nil {
		return nil, err
	}

	a := &ClearanceAuthorizer{
		now:         nowFn,
		revocations: revocations,
		tokens:      tokens,
	}
	for _, id := range opts.Revoked {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := a.Revoke(id, "configured"); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Authorize implements toolexecutor.Authorizer.
func (a *ClearanceAuthorizer) Authorize(ctx context.Context, creds *te.Credentials, required te.SecurityLevel) (bool, error) {
	if creds == nil {
		return false, nil
	}

	requesterID := tracing.GetRequesterID(ctx)
	for _, id := range []string{requesterID, creds.Subject} {
		if id != "" && a.IsRevoked(id) {
			log.Warn().Str("requester", id).Msg("Revoked requester denied")
			return false, fmt.Errorf("%w: %s", ErrRequesterRevoked, id)
		}
	}

	if !creds.ExpiresAt.IsZero() && !a.now().Before(creds.ExpiresAt) {
		return false, ErrCredentialsExpired
	}

	return creds.SecurityLevel >= required, nil
}

// Revoke denies every future call made by requesterID
func (a *ClearanceAuthorizer) Revoke(requesterID, reason string) error {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return fmt.Errorf("requester id is required")
	}
	return a.revocations.add(requesterID, reason)
}

// Restore lifts a revocation. It reports whether one existed.
func (a *ClearanceAuthorizer) Restore(requesterID string) (bool, error) {
	return a.revocations.remove(strings.TrimSpace(requesterID))
}

// IsRevoked reports whether requesterID is revoked
func (a *ClearanceAuthorizer) IsRevoked(requesterID string) bool {
	return a.revocations.contains(requesterID)
}

// Revocations lists revoked requesters, oldest first
func (a *ClearanceAuthorizer) Revocations() []Revocation {
	return a.revocations.list()
}

// Issue mints an opaque bearer token for subject at level. A zero ttl never expires.
func (a *ClearanceAuthorizer) Issue(subject string, level te.SecurityLevel, ttl time.Duration) (te.Credentials, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return te.Credentials{}, fmt.Errorf("subject is required")
	}

	creds := te.Credentials{
		Token:         uuid.NewString(),
		SecurityLevel: level,
		Subject:       subject,
	}
	entry := IssuedToken{
		Hash:          hashToken(creds.Token),
		Subject:       subject,
		SecurityLevel: level,
		IssuedAt:      a.now(),
	}
	if ttl > 0 {
		creds.ExpiresAt = entry.IssuedAt.Add(ttl)
		entry.ExpiresAt = creds.ExpiresAt
	}

	if err := a.tokens.put(entry); err != nil {
		return te.Credentials{}, err
	}
	log.Info().Str("subject", subject).Str("level", level.String()).Msg("Token issued")
	return creds, nil
}

// Authenticate resolves a token previously returned by Issue
func (a *ClearanceAuthorizer) Authenticate(token string) (*te.Credentials, error) {
	hash := hashToken(strings.TrimSpace(token))
	entry, ok := a.tokens.get(hash)
	if !ok {
		return nil, ErrUnknownToken
	}
	if entry.expired(a.now()) {
		_, _ = a.tokens.remove(hash)
		return nil, ErrCredentialsExpired
	}
	return &te.Credentials{
		Token:         token,
		SecurityLevel: entry.SecurityLevel,
		Subject:       entry.Subject,
		ExpiresAt:     entry.ExpiresAt,
	}, nil
}

// Invalidate forgets an issued token. It reports whether the token was known.
func (a *ClearanceAuthorizer) Invalidate(token string) (bool, error) {
	return a.tokens.remove(hashToken(strings.TrimSpace(token)))
}

// Tokens lists issued tokens, oldest first, after dropping expired ones
func (a *ClearanceAuthorizer) Tokens() ([]IssuedToken, error) {
	if _, err := a.tokens.prune(a.now()); err != nil {
		return nil, err
	}
	return a.tokens.list(), nil
}
