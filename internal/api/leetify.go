package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/meinjens/cstatsentry/internal/config"
)

// LeetifyClient talks to the Leetify game-history API.
type LeetifyClient struct {
	*httpClient
	apiKey  string
	baseURL string
}

func NewLeetifyClient(cfg *config.Config) *LeetifyClient {
	return &LeetifyClient{
		httpClient: newHTTPClient(),
		apiKey:     cfg.LeetifyAPIKey,
		baseURL:    strings.TrimSuffix(cfg.LeetifyAPIURL, "/"),
	}
}

func (c *LeetifyClient) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

type ProfileGamesResponse struct {
	Games []LeetifyGame `json:"games"`
}

type LeetifyGame struct {
	MatchID    string `json:"matchId"`
	ShareCode  string `json:"shareCode"`
	Map        string `json:"map"`
	GameType   string `json:"gameType"`
	StartTime  int64  `json:"startTime"` // unix millis
	EndTime    int64  `json:"endTime"`   // unix millis
	TeamAScore int    `json:"teamAScore"`
	TeamBScore int    `json:"teamBScore"`
	DemoURL    string `json:"demoUrl"`
}

// GetProfileGames lists a player's recent games, newest first.
func (c *LeetifyClient) GetProfileGames(ctx context.Context, steamID string, limit int) (*ProfileGamesResponse, error) {
	u := fmt.Sprintf("%s/api/profile/%s/games?limit=%d&offset=0", c.baseURL, url.PathEscape(steamID), limit)
	return doRequest[ProfileGamesResponse](ctx, c.httpClient, u, c.headers())
}

type GameDetailResponse struct {
	LeetifyGame
	Players []LeetifyPlayer `json:"players"`
}

type LeetifyPlayer struct {
	SteamID   string  `json:"steamId"`
	Name      string  `json:"name"`
	Team      string  `json:"team"` // "A" or "B"
	Kills     int     `json:"kills"`
	Deaths    int     `json:"deaths"`
	Assists   int     `json:"assists"`
	Score     int     `json:"score"`
	Headshots int     `json:"headshots"`
	ADR       float64 `json:"adr"`
	Rating    float64 `json:"rating"`
	MVPs      int     `json:"mvps"`
}

// GetGameDetail fetches one game with full per-player lines.
func (c *LeetifyClient) GetGameDetail(ctx context.Context, matchID string) (*GameDetailResponse, error) {
	u := fmt.Sprintf("%s/api/games/%s", c.baseURL, url.PathEscape(matchID))
	return doRequest[GameDetailResponse](ctx, c.httpClient, u, c.headers())
}
