package clash

// RankingClan is the clan summary embedded in player rankings
type RankingClan struct {
	Tag       string    `json:"tag"`
	Name      string    `json:"name"`
	BadgeURLs BadgeURLs `json:"badgeUrls"`
}

// PlayerRanking is an entry of the location or legend season player rankings
type PlayerRanking struct {
	Tag          string       `json:"tag"`
	Name         string       `json:"name"`
	ExpLevel     int          `json:"expLevel"`
	Trophies     int          `json:"trophies"`
	AttackWins   int          `json:"attackWins"`
	DefenseWins  int          `json:"defenseWins"`
	Rank         int          `json:"rank"`
	PreviousRank *int         `json:"previousRank,omitempty"`
	Clan         *RankingClan `json:"clan,omitempty"`
	League       *League      `json:"league,omitempty"`
}

type PlayerRankingList struct {
	Items  []PlayerRanking `json:"items"`
	Paging Paging          `json:"paging"`
}

type PlayerBuilderBaseRanking struct {
	Tag                 string             `json:"tag"`
	Name                string             `json:"name"`
	ExpLevel            int                `json:"expLevel"`
	Rank                int                `json:"rank"`
	PreviousRank        *int               `json:"previousRank,omitempty"`
	BuilderBaseTrophies int                `json:"builderBaseTrophies"`
	Clan                *RankingClan       `json:"clan,omitempty"`
	BuilderBaseLeague   *BuilderBaseLeague `json:"builderBaseLeague,omitempty"`
}

type PlayerBuilderBaseRankingList struct {
	Items  []PlayerBuilderBaseRanking `json:"items"`
	Paging Paging                     `json:"paging"`
}

type ClanRanking struct {
	Tag          string    `json:"tag"`
	Name         string    `json:"name"`
	Location     *Location `json:"location,omitempty"`
	BadgeURLs    BadgeURLs `json:"badgeUrls"`
	ClanLevel    int       `json:"clanLevel"`
	Members      int       `json:"members"`
	ClanPoints   int       `json:"clanPoints"`
	Rank         int       `json:"rank"`
	PreviousRank int       `json:"previousRank"`
}

type ClanRankingList struct {
	Items  []ClanRanking `json:"items"`
	Paging Paging        `json:"paging"`
}

type ClanBuilderBaseRanking struct {
	Tag                   string    `json:"tag"`
	Name                  string    `json:"name"`
	Location              *Location `json:"location,omitempty"`
	BadgeURLs             BadgeURLs `json:"badgeUrls"`
	ClanLevel             int       `json:"clanLevel"`
	Members               int       `json:"members"`
	ClanBuilderBasePoints int       `json:"clanBuilderBasePoints"`
	Rank                  int       `json:"rank"`
	PreviousRank          int       `json:"previousRank"`
}

type ClanBuilderBaseRankingList struct {
	Items  []ClanBuilderBaseRanking `json:"items"`
	Paging Paging                   `json:"paging"`
}

type ClanCapitalRanking struct {
	Tag               string    `json:"tag"`
	Name              string    `json:"name"`
	Location          *Location `json:"location,omitempty"`
	BadgeURLs         BadgeURLs `json:"badgeUrls"`
	ClanLevel         int       `json:"clanLevel"`
	Members           int       `json:"members"`
	ClanCapitalPoints int       `json:"clanCapitalPoints"`
	Rank              int       `json:"rank"`
	PreviousRank      int       `json:"previousRank"`
}

type ClanCapitalRankingList struct {
	Items  []ClanCapitalRanking `json:"items"`
	Paging Paging               `json:"paging"`
}
