// Package token tracks short-lived download tokens handed to clients
// before an export, and gates export requests on them.
package token

import (
	"context"
	"time"
)

// Store records issued tokens per session and answers one-shot
// freshness checks. Implementations must consume a token on a
// successful check so a replayed request sees it as spent.
type Store interface {
	// Issue registers a token for a session, replacing any prior one.
	Issue(ctx context.Context, session, token string, now time.Time) error
	// ConsumeIfValid reports whether the session holds this token and it
	// is still fresh, removing it either way when it matches.
	ConsumeIfValid(ctx context.Context, session, token string, now time.Time) (bool, error)
	// SweepExpired drops tokens past their freshness window.
	SweepExpired(ctx context.Context, now time.Time) error
}

// Guard decides whether an export request may proceed. The historical
// behavior is permissive: the token is consumed when present but a
// missing or stale one does not block the download. Strict mode makes
// the freshness check binding.
type Guard struct {
	Store  Store
	Strict bool
}

// Permit consumes the request's token and reports whether the export
// may run. Expired entries are swept on every call so the store does
// not accumulate abandoned sessions.
func (g Guard) Permit(ctx context.Context, session, token string) (bool, error) {
	now := time.Now()
	valid, err := g.Store.ConsumeIfValid(ctx, session, token, now)
	if err != nil {
		return false, err
	}
	if sweepErr := g.Store.SweepExpired(ctx, now); sweepErr != nil {
		return false, sweepErr
	}
	if g.Strict {
		return valid, nil
	}
	return true, nil
}
