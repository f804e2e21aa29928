package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/meinjens/cstatsentry/internal/config"
)

// SteamClient talks to the Steam Web API: the match-share chain used
// by the sync, plus the profile endpoints used by the profile refresh.
type SteamClient struct {
	*httpClient
	apiKey  string
	baseURL string
}

func NewSteamClient(cfg *config.Config) *SteamClient {
	return &SteamClient{
		httpClient: newHTTPClient(),
		apiKey:     cfg.SteamAPIKey,
		baseURL:    strings.TrimSuffix(cfg.SteamAPIURL, "/"),
	}
}

type nextCodeResponse struct {
	Result struct {
		NextCode *string `json:"nextcode"`
	} `json:"result"`
}

// GetNextMatchShareCode walks the user's match-share chain. Returns
// "" when the known code is the newest match. Requires the per-user
// auth code issued by the CS2 console (csgo_match_share_auth).
func (c *SteamClient) GetNextMatchShareCode(ctx context.Context, steamID, authCode, knownCode string) (string, error) {
	u := fmt.Sprintf("%s/ICSGOPlayers_730/GetNextMatchSharingCode/v1?key=%s&steamid=%s&steamidkey=%s&knowncode=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(steamID), url.QueryEscape(authCode), url.QueryEscape(knownCode))

	resp, err := doRequest[nextCodeResponse](ctx, c.httpClient, u, nil)
	if err != nil {
		return "", err
	}
	if resp.Result.NextCode == nil || *resp.Result.NextCode == "" || *resp.Result.NextCode == "n/a" {
		return "", nil
	}
	return *resp.Result.NextCode, nil
}

type PlayerSummariesResponse struct {
	Response struct {
		Players []PlayerSummary `json:"players"`
	} `json:"response"`
}

type PlayerSummary struct {
	SteamID                  string `json:"steamid"`
	PersonaName              string `json:"personaname"`
	ProfileURL               string `json:"profileurl"`
	AvatarFull               string `json:"avatarfull"`
	PersonaState             int    `json:"personastate"`
	CommunityVisibilityState int    `json:"communityvisibilitystate"`
	ProfileState             int    `json:"profilestate"`
	LastLogoff               int64  `json:"lastlogoff"`
	TimeCreated              int64  `json:"timecreated"`
	LocCountryCode           string `json:"loccountrycode"`
}

// GetPlayerSummaries fetches profiles for up to 100 steam ids.
func (c *SteamClient) GetPlayerSummaries(ctx context.Context, steamIDs []string) (*PlayerSummariesResponse, error) {
	if len(steamIDs) > 100 {
		return nil, fmt.Errorf("maximum 100 steam ids per request, got %d", len(steamIDs))
	}
	u := fmt.Sprintf("%s/ISteamUser/GetPlayerSummaries/v0002/?key=%s&steamids=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(strings.Join(steamIDs, ",")))
	return doRequest[PlayerSummariesResponse](ctx, c.httpClient, u, nil)
}

type PlayerBansResponse struct {
	Players []PlayerBanEntry `json:"players"`
}

type PlayerBanEntry struct {
	SteamID          string `json:"SteamId"`
	CommunityBanned  bool   `json:"CommunityBanned"`
	VACBanned        bool   `json:"VACBanned"`
	NumberOfVACBans  int    `json:"NumberOfVACBans"`
	DaysSinceLastBan int    `json:"DaysSinceLastBan"`
	NumberOfGameBans int    `json:"NumberOfGameBans"`
	EconomyBan       string `json:"EconomyBan"`
}

// GetPlayerBans fetches VAC and community ban state for up to 100 ids.
func (c *SteamClient) GetPlayerBans(ctx context.Context, steamIDs []string) (*PlayerBansResponse, error) {
	if len(steamIDs) > 100 {
		return nil, fmt.Errorf("maximum 100 steam ids per request, got %d", len(steamIDs))
	}
	u := fmt.Sprintf("%s/ISteamUser/GetPlayerBans/v1/?key=%s&steamids=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(strings.Join(steamIDs, ",")))
	return doRequest[PlayerBansResponse](ctx, c.httpClient, u, nil)
}

type OwnedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

type OwnedGame struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"` // minutes
}

// GetOwnedGames fetches the owned-game list. Fails with 403 for
// private profiles.
func (c *SteamClient) GetOwnedGames(ctx context.Context, steamID string) (*OwnedGamesResponse, error) {
	u := fmt.Sprintf("%s/IPlayerService/GetOwnedGames/v0001/?key=%s&steamid=%s&format=json&include_appinfo=true&include_played_free_games=true",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(steamID))
	return doRequest[OwnedGamesResponse](ctx, c.httpClient, u, nil)
}

// CS2AppID is the Steam app id for Counter-Strike 2.
const CS2AppID = 730

// CS2Hours extracts the CS2 playtime in hours from an owned-games
// response, or (0, false) when the game is not in the list.
func CS2Hours(resp *OwnedGamesResponse) (float64, bool) {
	for _, g := range resp.Response.Games {
		if g.AppID == CS2AppID {
			return float64(g.PlaytimeForever) / 60.0, true
		}
	}
	return 0, false
}
