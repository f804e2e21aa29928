package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/meinjens/cstatsentry/internal/api"
	"github.com/meinjens/cstatsentry/internal/constants"
	"github.com/meinjens/cstatsentry/internal/domain"
	"github.com/meinjens/cstatsentry/internal/sharecode"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const SteamName = "steam"

// Steam walks the official match-share chain: starting from the last
// known sharecode it asks GetNextMatchSharingCode until the chain
// ends or limit is reached. Records carry identity and demo URL but
// no player lines; those come from demo parsing, which is externally
// owned, or from other providers.
type Steam struct {
	client *api.SteamClient
	logger zerolog.Logger
}

func NewSteam(client *api.SteamClient, logger zerolog.Logger) *Steam {
	return &Steam{client: client, logger: logger.With().Str("provider", SteamName).Logger()}
}

func (s *Steam) Name() string  { return SteamName }
func (s *Steam) Priority() int { return 1 }

func (s *Steam) ListRecentSessions(ctx context.Context, user *domain.User, since string, limit int) ([]SessionRef, error) {
	if user.AuthCode == "" {
		return nil, &AuthError{Provider: SteamName, Reason: "user has no match-share auth code"}
	}

	start := since
	if start == "" {
		start = user.LastShareCode
	}
	if start == "" {
		return nil, &AuthError{Provider: SteamName, Reason: "user has no registered sharecode to start from"}
	}
	if !sharecode.Valid(start) {
		return nil, &AuthError{Provider: SteamName, Reason: fmt.Sprintf("invalid starting sharecode %q", start)}
	}

	var refs []SessionRef
	current := start
	for len(refs) < limit {
		next, err := s.client.GetNextMatchShareCode(ctx, user.SteamID, user.AuthCode, current)
		if err != nil {
			// Listing part of the chain is still usable data, but an
			// error on the very first step fails the listing.
			if len(refs) > 0 && !isAuth(err) {
				s.logger.Warn().Err(err).Int("listed", len(refs)).Msg("chain walk interrupted, returning partial listing")
				return refs, nil
			}
			return nil, s.classify(err)
		}
		if next == "" {
			break
		}

		info, err := sharecode.Decode(next)
		if err != nil {
			s.logger.Warn().Err(err).Str("sharecode", next).Msg("undecodable sharecode in chain")
			return refs, nil
		}

		refs = append(refs, SessionRef{
			Provider:  SteamName,
			NativeID:  strconv.FormatUint(info.MatchID, 10),
			ShareCode: next,
			Cursor:    next,
		})
		current = next
	}

	s.logger.Debug().Int("count", len(refs)).Str("since", since).Msg("listed sessions")
	return refs, nil
}

// FetchSessionDetail is a pure transform for Steam: everything the
// provider knows is already encoded in the sharecode.
func (s *Steam) FetchSessionDetail(_ context.Context, _ *domain.User, ref SessionRef) (*SessionRecord, error) {
	info, err := sharecode.Decode(ref.ShareCode)
	if err != nil {
		return nil, &MalformedError{Provider: SteamName, Err: err}
	}

	return &SessionRecord{
		NativeID:  strconv.FormatUint(info.MatchID, 10),
		ShareCode: ref.ShareCode,
		DemoURL:   sharecode.DemoURL(info, constants.DefaultReplayServer),
	}, nil
}

func isAuth(err error) bool {
	var se *api.StatusError
	return errors.As(err, &se) &&
		(se.StatusCode == fasthttp.StatusForbidden || se.StatusCode == fasthttp.StatusUnauthorized)
}

func (s *Steam) classify(err error) error {
	var se *api.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == fasthttp.StatusForbidden || se.StatusCode == fasthttp.StatusUnauthorized:
			return &AuthError{Provider: SteamName, Reason: err.Error()}
		case se.StatusCode == fasthttp.StatusPreconditionFailed:
			// Steam returns 412 for a bad steamidkey.
			return &AuthError{Provider: SteamName, Reason: err.Error()}
		default:
			return &UnavailableError{Provider: SteamName, StatusCode: se.StatusCode, Err: err}
		}
	}
	return &UnavailableError{Provider: SteamName, Err: err}
}
