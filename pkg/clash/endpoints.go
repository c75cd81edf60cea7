package clash

import (
	"fmt"
	"strings"
)

// Default service locations
const (
	DefaultPortalURL = "https://developer.clashofclans.com/api"
	DefaultAPIURL    = "https://api.clashofclans.com/v1"
)

// Developer portal paths
const (
	PathLogin     = "/login"
	PathLogout    = "/logout"
	PathKeyList   = "/apikey/list"
	PathKeyCreate = "/apikey/create"
	PathKeyRevoke = "/apikey/revoke"
)

const encodedHash = "%23"

// FormatTag returns the URL-safe form of a player or clan tag. A leading "%23"
// is kept, a leading "#" is replaced with "%23", anything else gets "%23"
// prepended. Applying it twice gives the same result.
func FormatTag(tag string) string {
	switch {
	case strings.HasPrefix(tag, encodedHash):
		return tag
	case strings.HasPrefix(tag, "#"):
		return encodedHash + tag[1:]
	default:
		return encodedHash + tag
	}
}

// Clans

func ClansPath() string { return "/clans" }

func ClanPath(tag string) string { return "/clans/" + FormatTag(tag) }

func ClanMembersPath(tag string) string { return ClanPath(tag) + "/members" }

func ClanWarLogPath(tag string) string { return ClanPath(tag) + "/warlog" }

func ClanCurrentWarPath(tag string) string { return ClanPath(tag) + "/currentwar" }

func ClanWarLeagueGroupPath(tag string) string { return ClanPath(tag) + "/currentwar/leaguegroup" }

func ClanCapitalRaidSeasonsPath(tag string) string { return ClanPath(tag) + "/capitalraidseasons" }

func ClanWarLeagueWarPath(warTag string) string { return "/clanwarleagues/wars/" + FormatTag(warTag) }

// Players

func PlayerPath(tag string) string { return "/players/" + FormatTag(tag) }

func PlayerVerifyTokenPath(tag string) string { return PlayerPath(tag) + "/verifytoken" }

// Leagues

func LeaguesPath() string { return "/leagues" }

func LeaguePath(id LeagueID) string { return fmt.Sprintf("/leagues/%d", id) }

func LeagueSeasonsPath(id LeagueID) string { return LeaguePath(id) + "/seasons" }

func LeagueSeasonRankingsPath(id LeagueID, seasonID string) string {
	return LeagueSeasonsPath(id) + "/" + seasonID
}

func CapitalLeaguesPath() string { return "/capitalleagues" }

func CapitalLeaguePath(id CapitalLeagueID) string { return fmt.Sprintf("/capitalleagues/%d", id) }

func BuilderBaseLeaguesPath() string { return "/builderbaseleagues" }

func BuilderBaseLeaguePath(id BuilderBaseLeagueID) string {
	return fmt.Sprintf("/builderbaseleagues/%d", id)
}

func WarLeaguesPath() string { return "/warleagues" }

func WarLeaguePath(id WarLeagueID) string { return fmt.Sprintf("/warleagues/%d", id) }

// Locations

func LocationsPath() string { return "/locations" }

func LocationPath(id int) string { return fmt.Sprintf("/locations/%d", id) }

func locationRankingPath(id int, kind string) string {
	return LocationPath(id) + "/rankings/" + kind
}

func LocationClanRankingsPath(id int) string { return locationRankingPath(id, "clans") }

func LocationPlayerRankingsPath(id int) string { return locationRankingPath(id, "players") }

func LocationPlayerBuilderBaseRankingsPath(id int) string {
	return locationRankingPath(id, "players-builder-base")
}

func LocationClanBuilderBaseRankingsPath(id int) string {
	return locationRankingPath(id, "clans-builder-base")
}

func LocationCapitalRankingsPath(id int) string { return locationRankingPath(id, "capitals") }

// Misc

func GoldPassSeasonPath() string { return "/goldpass/seasons/current" }

func PlayerLabelsPath() string { return "/labels/players" }

func ClanLabelsPath() string { return "/labels/clans" }
