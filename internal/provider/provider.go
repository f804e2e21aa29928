// Package provider defines the contract every external match-data
// source implements, plus the error taxonomy the sync orchestrator
// uses to decide between retry, skip and abort.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"
)

// SessionRef points at one session a provider knows about. Cursor is
// the opaque per-provider value that, once stored, excludes this
// session (and everything older) from future listings.
type SessionRef struct {
	Provider  string
	NativeID  string
	ShareCode string
	Cursor    string
	StartedAt time.Time
}

// SessionPlayer is one player's line as reported by a provider.
type SessionPlayer struct {
	SteamID     string
	Name        string
	Team        int // 1 or 2, 0 unknown
	Kills       int
	Deaths      int
	Assists     int
	Score       int
	Headshots   int
	HeadshotPct float64
	ADR         float64
	Rating      float64
	MVPs        int
}

// SessionRecord is a provider's full view of one session, still in
// provider terms. The orchestrator normalizes it into the canonical
// Match/MatchPlayer shape.
type SessionRecord struct {
	NativeID   string
	ShareCode  string
	MapName    string
	StartedAt  time.Time
	FinishedAt time.Time
	ScoreTeam1 int
	ScoreTeam2 int
	GameType   string
	DemoURL    string
	Players    []SessionPlayer
}

// Provider is one external match-data source.
type Provider interface {
	Name() string

	// Priority orders sources when they disagree on a populated
	// field; higher wins. Must be unique across configured providers.
	Priority() int

	// ListRecentSessions returns sessions newer than the cursor,
	// oldest first, at most limit. An empty cursor means "from the
	// beginning the provider can see".
	ListRecentSessions(ctx context.Context, user *domain.User, since string, limit int) ([]SessionRef, error)

	// FetchSessionDetail resolves a ref to its full record.
	FetchSessionDetail(ctx context.Context, user *domain.User, ref SessionRef) (*SessionRecord, error)
}

// AuthError means the user's credentials for this provider are
// missing, invalid or expired. Terminal for the run; never retried.
type AuthError struct {
	Provider string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth error: %s", e.Provider, e.Reason)
}

// UnavailableError is a transient failure (timeout, 5xx, rate limit).
// Retried with backoff up to the bounded attempt count.
type UnavailableError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unavailable (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// MalformedError marks one unparseable record. The record is logged
// and skipped; it never fails the provider's batch.
type MalformedError struct {
	Provider string
	Err      error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed record: %v", e.Provider, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }
