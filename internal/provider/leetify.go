package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/meinjens/cstatsentry/internal/api"
	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const LeetifyName = "leetify"

// Leetify lists a player's recent games by steam id and fetches full
// per-player lines for each. The cursor is the RFC3339 start time of
// the newest ingested game.
type Leetify struct {
	client *api.LeetifyClient
	logger zerolog.Logger
}

func NewLeetify(client *api.LeetifyClient, logger zerolog.Logger) *Leetify {
	return &Leetify{client: client, logger: logger.With().Str("provider", LeetifyName).Logger()}
}

func (l *Leetify) Name() string  { return LeetifyName }
func (l *Leetify) Priority() int { return 2 }

func (l *Leetify) ListRecentSessions(ctx context.Context, user *domain.User, since string, limit int) ([]SessionRef, error) {
	var cutoff time.Time
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("parse leetify cursor %q: %w", since, err)
		}
		cutoff = t
	}

	resp, err := l.client.GetProfileGames(ctx, user.SteamID, limit)
	if err != nil {
		return nil, l.classify(err)
	}

	refs := make([]SessionRef, 0, len(resp.Games))
	for _, g := range resp.Games {
		if g.MatchID == "" {
			l.logger.Warn().Msg("game listing without match id, skipping")
			continue
		}
		started := time.UnixMilli(g.StartTime).UTC()
		if !cutoff.IsZero() && !started.After(cutoff) {
			continue
		}
		refs = append(refs, SessionRef{
			Provider:  LeetifyName,
			NativeID:  g.MatchID,
			Cursor:    started.Format(time.RFC3339),
			StartedAt: started,
		})
	}

	// API returns newest first; the contract wants oldest first so
	// cursor advancement covers a prefix.
	sort.Slice(refs, func(i, j int) bool { return refs[i].StartedAt.Before(refs[j].StartedAt) })

	if len(refs) > limit {
		refs = refs[:limit]
	}

	l.logger.Debug().Int("count", len(refs)).Str("since", since).Msg("listed sessions")
	return refs, nil
}

func (l *Leetify) FetchSessionDetail(ctx context.Context, _ *domain.User, ref SessionRef) (*SessionRecord, error) {
	detail, err := l.client.GetGameDetail(ctx, ref.NativeID)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && se.StatusCode == fasthttp.StatusNotFound {
			return nil, &MalformedError{Provider: LeetifyName, Err: fmt.Errorf("game %s not found", ref.NativeID)}
		}
		return nil, l.classify(err)
	}
	if detail.MatchID == "" {
		return nil, &MalformedError{Provider: LeetifyName, Err: fmt.Errorf("game detail without match id")}
	}

	rec := &SessionRecord{
		NativeID:   detail.MatchID,
		ShareCode:  detail.ShareCode,
		MapName:    detail.Map,
		StartedAt:  time.UnixMilli(detail.StartTime).UTC(),
		FinishedAt: time.UnixMilli(detail.EndTime).UTC(),
		ScoreTeam1: detail.TeamAScore,
		ScoreTeam2: detail.TeamBScore,
		GameType:   detail.GameType,
		DemoURL:    detail.DemoURL,
	}

	for _, p := range detail.Players {
		if p.SteamID == "" {
			continue
		}
		team := 0
		switch p.Team {
		case "A":
			team = 1
		case "B":
			team = 2
		}
		hsPct := 0.0
		if p.Kills > 0 && p.Headshots > 0 {
			hsPct = float64(p.Headshots) / float64(p.Kills) * 100
		}
		rec.Players = append(rec.Players, SessionPlayer{
			SteamID:     p.SteamID,
			Name:        p.Name,
			Team:        team,
			Kills:       p.Kills,
			Deaths:      p.Deaths,
			Assists:     p.Assists,
			Score:       p.Score,
			Headshots:   p.Headshots,
			HeadshotPct: hsPct,
			ADR:         p.ADR,
			Rating:      p.Rating,
			MVPs:        p.MVPs,
		})
	}

	return rec, nil
}

func (l *Leetify) classify(err error) error {
	var se *api.StatusError
	if errors.As(err, &se) {
		if se.StatusCode == fasthttp.StatusUnauthorized || se.StatusCode == fasthttp.StatusForbidden {
			return &AuthError{Provider: LeetifyName, Reason: err.Error()}
		}
		return &UnavailableError{Provider: LeetifyName, StatusCode: se.StatusCode, Err: err}
	}
	return &UnavailableError{Provider: LeetifyName, Err: err}
}
