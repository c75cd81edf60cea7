package clash

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache stores raw statistics responses. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ClientConfig holds the statistics API client configuration
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Cache is optional. Responses are cached only when the API sends a
	// Cache-Control max-age.
	Cache  Cache
	Logger *zap.Logger
}

// DefaultClientConfig returns a configuration for the public API
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: DefaultAPIURL,
		Timeout: 30 * time.Second,
	}
}

// Client is a statistics API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new statistics API client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return NewClientWithHTTPClient(config, &http.Client{
		Timeout: config.Timeout,
	})
}

// NewClientWithHTTPClient creates a new statistics API client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger.Named("stats"),
	}
}

// WithToken returns a client sharing the transport but using another token
func (c *Client) WithToken(token string) *Client {
	cfg := *c.config
	cfg.Token = token
	return &Client{
		config:     &cfg,
		httpClient: c.httpClient,
		logger:     c.logger,
	}
}

// ListOptions pages through list endpoints. After and Before are mutually
// exclusive cursors.
type ListOptions struct {
	Limit  int
	After  string
	Before string
}

func (o *ListOptions) values() (url.Values, error) {
	q := url.Values{}
	if o == nil {
		return q, nil
	}
	if o.Limit < 0 {
		return nil, newError(KindInvalidParameters, "limit must not be negative")
	}
	if o.After != "" && o.Before != "" {
		return nil, newError(KindInvalidParameters, "only one of after and before may be set")
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.After != "" {
		q.Set("after", o.After)
	}
	if o.Before != "" {
		q.Set("before", o.Before)
	}
	return q, nil
}

// ClanSearchOptions filters a clan search. At least one filter must be set.
type ClanSearchOptions struct {
	Name          string
	WarFrequency  WarFrequency
	LocationID    int
	MinMembers    int
	MaxMembers    int
	MinClanPoints int
	MinClanLevel  int
	LabelIDs      []int
	ListOptions
}

const minClanSearchName = 3

func (o *ClanSearchOptions) values() (url.Values, error) {
	if o == nil {
		return nil, newError(KindInvalidParameters, "clan search needs at least one filter")
	}
	q, err := o.ListOptions.values()
	if err != nil {
		return nil, err
	}

	if o.Name != "" {
		if len([]rune(o.Name)) < minClanSearchName {
			return nil, newError(KindInvalidParameters,
				fmt.Sprintf("name must be at least %d characters", minClanSearchName))
		}
		q.Set("name", o.Name)
	}
	if o.WarFrequency != "" {
		q.Set("warFrequency", string(o.WarFrequency))
	}
	setPositive(q, "locationId", o.LocationID)
	setPositive(q, "minMembers", o.MinMembers)
	setPositive(q, "maxMembers", o.MaxMembers)
	setPositive(q, "minClanPoints", o.MinClanPoints)
	setPositive(q, "minClanLevel", o.MinClanLevel)
	if len(o.LabelIDs) > 0 {
		ids := make([]string, len(o.LabelIDs))
		for i, id := range o.LabelIDs {
			ids[i] = strconv.Itoa(id)
		}
		q.Set("labelIds", strings.Join(ids, ","))
	}

	for _, k := range []string{"name", "warFrequency", "locationId", "minMembers", "maxMembers", "minClanPoints", "minClanLevel", "labelIds"} {
		if q.Has(k) {
			return q, nil
		}
	}
	return nil, newError(KindInvalidParameters, "clan search needs at least one filter")
}

func setPositive(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	if c.config.Token != "" {
		h.Set("Authorization", "Bearer "+c.config.Token)
	}
	return h
}

// get fetches path and decodes the body into result, going through the cache
// when one is configured
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	if c.config.Cache != nil {
		cached, ok, err := c.config.Cache.Get(ctx, target)
		if err != nil {
			c.logger.Warn("cache read failed", zap.String("key", target), zap.Error(err))
		} else if ok {
			return decodeBody(cached, result)
		}
	}

	resp, err := doRequest(ctx, c.httpClient, c.logger, http.MethodGet, c.config.BaseURL+target, c.headers(), nil)
	if err != nil {
		return err
	}

	if err := decodeBody(resp.body, result); err != nil {
		return err
	}

	if c.config.Cache != nil {
		if ttl := maxAge(resp.header); ttl > 0 {
			if err := c.config.Cache.Set(ctx, target, resp.body, ttl); err != nil {
				c.logger.Warn("cache write failed", zap.String("key", target), zap.Error(err))
			}
		}
	}

	return nil
}

// maxAge returns the Cache-Control max-age of a response, or zero
func maxAge(header http.Header) time.Duration {
	directives := strings.FieldsFunc(header.Get("Cache-Control"), func(r rune) bool {
		return r == ',' || r == ' '
	})
	for _, directive := range directives {
		name, value, ok := strings.Cut(directive, "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func requireTag(tag string) error {
	if strings.TrimSpace(tag) == "" || tag == "#" || tag == encodedHash {
		return newError(KindInvalidTag, "tag is empty")
	}
	return nil
}

func getTagged[T any](ctx context.Context, c *Client, tag string, path func(string) string, query url.Values) (*T, error) {
	if err := requireTag(tag); err != nil {
		return nil, err
	}
	var result T
	if err := c.get(ctx, path(tag), query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func getList[T any](ctx context.Context, c *Client, path string, opts *ListOptions) (*T, error) {
	q, err := opts.values()
	if err != nil {
		return nil, err
	}
	var result T
	if err := c.get(ctx, path, q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Clans

// SearchClans searches all clans by name and/or filters
func (c *Client) SearchClans(ctx context.Context, opts *ClanSearchOptions) (*ClanList, error) {
	q, err := opts.values()
	if err != nil {
		return nil, err
	}
	var result ClanList
	if err := c.get(ctx, ClansPath(), q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Clan(ctx context.Context, tag string) (*Clan, error) {
	return getTagged[Clan](ctx, c, tag, ClanPath, nil)
}

func (c *Client) ClanMembers(ctx context.Context, tag string, opts *ListOptions) (*ClanMemberList, error) {
	q, err := opts.values()
	if err != nil {
		return nil, err
	}
	return getTagged[ClanMemberList](ctx, c, tag, ClanMembersPath, q)
}

// ClanWarLog returns the war log. A private log yields an access denied error.
func (c *Client) ClanWarLog(ctx context.Context, tag string, opts *ListOptions) (*ClanWarLog, error) {
	q, err := opts.values()
	if err != nil {
		return nil, err
	}
	return getTagged[ClanWarLog](ctx, c, tag, ClanWarLogPath, q)
}

func (c *Client) ClanCurrentWar(ctx context.Context, tag string) (*ClanWar, error) {
	return getTagged[ClanWar](ctx, c, tag, ClanCurrentWarPath, nil)
}

func (c *Client) ClanWarLeagueGroup(ctx context.Context, tag string) (*ClanWarLeagueGroup, error) {
	return getTagged[ClanWarLeagueGroup](ctx, c, tag, ClanWarLeagueGroupPath, nil)
}

func (c *Client) ClanWarLeagueWar(ctx context.Context, warTag string) (*ClanWar, error) {
	return getTagged[ClanWar](ctx, c, warTag, ClanWarLeagueWarPath, nil)
}

func (c *Client) ClanCapitalRaidSeasons(ctx context.Context, tag string, opts *ListOptions) (*ClanCapitalRaidSeasonList, error) {
	q, err := opts.values()
	if err != nil {
		return nil, err
	}
	return getTagged[ClanCapitalRaidSeasonList](ctx, c, tag, ClanCapitalRaidSeasonsPath, q)
}

// Players

func (c *Client) Player(ctx context.Context, tag string) (*Player, error) {
	return getTagged[Player](ctx, c, tag, PlayerPath, nil)
}

// VerifyPlayerToken checks a player's in-game API token
func (c *Client) VerifyPlayerToken(ctx context.Context, tag, token string) (*VerifyTokenResponse, error) {
	if err := requireTag(tag); err != nil {
		return nil, err
	}

	resp, err := doRequest(ctx, c.httpClient, c.logger, http.MethodPost,
		c.config.BaseURL+PlayerVerifyTokenPath(tag), c.headers(), &VerifyTokenRequest{Token: token})
	if err != nil {
		return nil, err
	}

	var result VerifyTokenResponse
	if err := decodeBody(resp.body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Leagues

func (c *Client) Leagues(ctx context.Context, opts *ListOptions) (*LeagueList, error) {
	return getList[LeagueList](ctx, c, LeaguesPath(), opts)
}

func (c *Client) League(ctx context.Context, id LeagueID) (*League, error) {
	var result League
	if err := c.get(ctx, LeaguePath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LeagueSeasons lists the finished seasons of the legend league
func (c *Client) LeagueSeasons(ctx context.Context, id LeagueID, opts *ListOptions) (*LeagueSeasonList, error) {
	return getList[LeagueSeasonList](ctx, c, LeagueSeasonsPath(id), opts)
}

func (c *Client) LeagueSeasonRankings(ctx context.Context, id LeagueID, seasonID string, opts *ListOptions) (*PlayerRankingList, error) {
	if seasonID == "" {
		return nil, newError(KindInvalidParameters, "season id is empty")
	}
	return getList[PlayerRankingList](ctx, c, LeagueSeasonRankingsPath(id, url.PathEscape(seasonID)), opts)
}

func (c *Client) CapitalLeagues(ctx context.Context, opts *ListOptions) (*CapitalLeagueList, error) {
	return getList[CapitalLeagueList](ctx, c, CapitalLeaguesPath(), opts)
}

func (c *Client) CapitalLeague(ctx context.Context, id CapitalLeagueID) (*CapitalLeague, error) {
	var result CapitalLeague
	if err := c.get(ctx, CapitalLeaguePath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) BuilderBaseLeagues(ctx context.Context, opts *ListOptions) (*BuilderBaseLeagueList, error) {
	return getList[BuilderBaseLeagueList](ctx, c, BuilderBaseLeaguesPath(), opts)
}

func (c *Client) BuilderBaseLeague(ctx context.Context, id BuilderBaseLeagueID) (*BuilderBaseLeague, error) {
	var result BuilderBaseLeague
	if err := c.get(ctx, BuilderBaseLeaguePath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) WarLeagues(ctx context.Context, opts *ListOptions) (*WarLeagueList, error) {
	return getList[WarLeagueList](ctx, c, WarLeaguesPath(), opts)
}

func (c *Client) WarLeague(ctx context.Context, id WarLeagueID) (*WarLeague, error) {
	var result WarLeague
	if err := c.get(ctx, WarLeaguePath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Locations

func (c *Client) Locations(ctx context.Context, opts *ListOptions) (*LocationList, error) {
	return getList[LocationList](ctx, c, LocationsPath(), opts)
}

func (c *Client) Location(ctx context.Context, id int) (*Location, error) {
	var result Location
	if err := c.get(ctx, LocationPath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ClanRankings(ctx context.Context, locationID int, opts *ListOptions) (*ClanRankingList, error) {
	return getList[ClanRankingList](ctx, c, LocationClanRankingsPath(locationID), opts)
}

func (c *Client) PlayerRankings(ctx context.Context, locationID int, opts *ListOptions) (*PlayerRankingList, error) {
	return getList[PlayerRankingList](ctx, c, LocationPlayerRankingsPath(locationID), opts)
}

func (c *Client) PlayerBuilderBaseRankings(ctx context.Context, locationID int, opts *ListOptions) (*PlayerBuilderBaseRankingList, error) {
	return getList[PlayerBuilderBaseRankingList](ctx, c, LocationPlayerBuilderBaseRankingsPath(locationID), opts)
}

func (c *Client) ClanBuilderBaseRankings(ctx context.Context, locationID int, opts *ListOptions) (*ClanBuilderBaseRankingList, error) {
	return getList[ClanBuilderBaseRankingList](ctx, c, LocationClanBuilderBaseRankingsPath(locationID), opts)
}

func (c *Client) CapitalRankings(ctx context.Context, locationID int, opts *ListOptions) (*ClanCapitalRankingList, error) {
	return getList[ClanCapitalRankingList](ctx, c, LocationCapitalRankingsPath(locationID), opts)
}

// Misc

func (c *Client) GoldPassSeason(ctx context.Context) (*GoldPassSeason, error) {
	var result GoldPassSeason
	if err := c.get(ctx, GoldPassSeasonPath(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PlayerLabels(ctx context.Context, opts *ListOptions) (*LabelList, error) {
	return getList[LabelList](ctx, c, PlayerLabelsPath(), opts)
}

func (c *Client) ClanLabels(ctx context.Context, opts *ListOptions) (*LabelList, error) {
	return getList[LabelList](ctx, c, ClanLabelsPath(), opts)
}
