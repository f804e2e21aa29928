package repository

import (
	"context"
	"testing"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matchDate = time.Date(2026, 5, 10, 18, 30, 0, 0, time.UTC)

// steamRecord mimics what the sharecode chain yields: identity and
// demo URL, no map, no players.
func steamRecord(matchID string) MergeRecord {
	return MergeRecord{Match: domain.Match{
		MatchID:        matchID,
		ShareCode:      "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAB",
		MatchDate:      matchDate,
		DemoURL:        "http://replay124.valve.net/730/000000000000000000042_0000000000.dem.bz2",
		SourcePriority: 1,
	}}
}

// leetifyRecord mimics the stats provider: full match and player lines.
func leetifyRecord(matchID, userSteamID string) MergeRecord {
	return MergeRecord{
		Match: domain.Match{
			MatchID:        matchID,
			MapName:        "de_mirage",
			MatchDate:      matchDate,
			ScoreTeam1:     13,
			ScoreTeam2:     7,
			WinningTeam:    1,
			GameType:       "competitive",
			SourcePriority: 2,
		},
		Players: []domain.MatchPlayer{
			{MatchID: matchID, SteamID: userSteamID, Name: "owner", Team: 1, Kills: 20, Deaths: 14, Assists: 3, Headshots: 10, HeadshotPct: 50, SourcePriority: 2},
			{MatchID: matchID, SteamID: "76561198000000002", Name: "mate", Team: 1, Kills: 15, Deaths: 16, SourcePriority: 2},
			{MatchID: matchID, SteamID: "76561198000000003", Name: "opponent", Team: 2, Kills: 18, Deaths: 17, SourcePriority: 2},
		},
	}
}

func TestMergeBatchCreatesAndAdvancesCursor(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	stats, err := repo.MergeBatch(ctx, user, "steam", []MergeRecord{steamRecord("42")}, "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAB")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.Enriched)

	match, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAB", match.ShareCode)
	assert.Equal(t, 1, match.SourcePriority)

	cursor, err := NewUserRepository(db, zerolog.Nop()).GetCursor(ctx, user.UserID, "steam")
	require.NoError(t, err)
	assert.Equal(t, "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAB", cursor)

	providers, err := repo.GetProvenance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"steam"}, providers)
}

func TestMergeBatchIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	batch := []MergeRecord{leetifyRecord("42", user.SteamID)}

	first, err := repo.MergeBatch(ctx, user, "leetify", batch, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := repo.MergeBatch(ctx, user, "leetify", batch, "c1")
	require.NoError(t, err)
	assert.Equal(t, MergeStats{}, second, "replaying the same batch changes nothing")

	count, err := repo.CountForUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMergeBatchEnrichesAcrossProviders(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	_, err := repo.MergeBatch(ctx, user, "steam", []MergeRecord{steamRecord("42")}, "")
	require.NoError(t, err)

	stats, err := repo.MergeBatch(ctx, user, "leetify", []MergeRecord{leetifyRecord("42", user.SteamID)}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Enriched)

	match, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	// Steam's fields survive, leetify's fill the gaps.
	assert.Equal(t, "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAB", match.ShareCode)
	assert.NotEmpty(t, match.DemoURL)
	assert.Equal(t, "de_mirage", match.MapName)
	assert.Equal(t, 13, match.ScoreTeam1)
	assert.Equal(t, 2, match.SourcePriority)

	providers, err := repo.GetProvenance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"leetify", "steam"}, providers)

	players, err := repo.GetPlayers(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, players, 3)
}

func TestMergeBatchCommutative(t *testing.T) {
	ctx := context.Background()

	finalMatch := func(order []string) domain.Match {
		db := testDB(t)
		user := seedUser(t, db, "u1", "76561198000000001")
		repo := NewMatchRepository(db, zerolog.Nop())

		for _, providerName := range order {
			var batch []MergeRecord
			if providerName == "steam" {
				batch = []MergeRecord{steamRecord("42")}
			} else {
				batch = []MergeRecord{leetifyRecord("42", user.SteamID)}
			}
			_, err := repo.MergeBatch(ctx, user, providerName, batch, "")
			require.NoError(t, err)
		}

		match, err := repo.Get(ctx, "42")
		require.NoError(t, err)
		match.CreatedAt, match.UpdatedAt = time.Time{}, time.Time{}
		return *match
	}

	steamFirst := finalMatch([]string{"steam", "leetify"})
	leetifyFirst := finalMatch([]string{"leetify", "steam"})
	assert.Equal(t, steamFirst, leetifyFirst)
}

func TestMergeLowerPriorityNeverClobbers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	_, err := repo.MergeBatch(ctx, user, "leetify", []MergeRecord{leetifyRecord("42", user.SteamID)}, "")
	require.NoError(t, err)

	conflicting := steamRecord("42")
	conflicting.Match.MapName = "de_dust2"
	_, err = repo.MergeBatch(ctx, user, "steam", []MergeRecord{conflicting}, "")
	require.NoError(t, err)

	match, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "de_mirage", match.MapName, "lower-priority source must not replace a populated field")
	assert.Equal(t, "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAB", match.ShareCode, "but it still fills empty ones")
}

func TestOverlappingProvidersYieldOneCanonicalRow(t *testing.T) {
	// Provider A reports sessions 1 and 2, provider B reports 2 and 3:
	// three canonical matches, with 2 confirmed by both.
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	_, err := repo.MergeBatch(ctx, user, "steam", []MergeRecord{steamRecord("1"), steamRecord("2")}, "")
	require.NoError(t, err)
	_, err = repo.MergeBatch(ctx, user, "leetify",
		[]MergeRecord{leetifyRecord("2", user.SteamID), leetifyRecord("3", user.SteamID)}, "")
	require.NoError(t, err)

	count, err := repo.CountForUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	providers, err := repo.GetProvenance(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"leetify", "steam"}, providers)

	providers, err = repo.GetProvenance(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"steam"}, providers)
}

func TestTeammatesRecomputedFromSameTeam(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	_, err := repo.MergeBatch(ctx, user, "leetify", []MergeRecord{leetifyRecord("42", user.SteamID)}, "")
	require.NoError(t, err)

	teammates, err := repo.ListTeammates(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, teammates, 1, "only the same-team player counts")
	assert.Equal(t, "76561198000000002", teammates[0].PlayerSteamID)
	assert.Equal(t, 1, teammates[0].MatchesTogether)

	// Replay keeps the aggregate stable.
	_, err = repo.MergeBatch(ctx, user, "leetify", []MergeRecord{leetifyRecord("42", user.SteamID)}, "")
	require.NoError(t, err)
	teammates, err = repo.ListTeammates(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, teammates, 1)
	assert.Equal(t, 1, teammates[0].MatchesTogether)
}

func TestPlayerHistoryOrderedOldestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "u1", "76561198000000001")
	repo := NewMatchRepository(db, zerolog.Nop())

	for i, id := range []string{"10", "11", "12"} {
		rec := leetifyRecord(id, user.SteamID)
		rec.Match.MatchDate = matchDate.AddDate(0, 0, i)
		for j := range rec.Players {
			rec.Players[j].Kills = 10 + i
		}
		_, err := repo.MergeBatch(ctx, user, "leetify", []MergeRecord{rec}, "")
		require.NoError(t, err)
	}

	history, err := repo.PlayerHistory(ctx, user.SteamID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 10, history[0].Kills)
	assert.Equal(t, 12, history[2].Kills)
	assert.True(t, history[0].MatchDate.Before(history[2].MatchDate))
}

func TestGetMatchNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewMatchRepository(db, zerolog.Nop())

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
