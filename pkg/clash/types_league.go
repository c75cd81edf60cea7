package clash

// LeagueID identifies a home village trophy league
type LeagueID int

const (
	LeagueUnranked LeagueID = 29000000 + iota
	LeagueBronzeIII
	LeagueBronzeII
	LeagueBronzeI
	LeagueSilverIII
	LeagueSilverII
	LeagueSilverI
	LeagueGoldIII
	LeagueGoldII
	LeagueGoldI
	LeagueCrystalIII
	LeagueCrystalII
	LeagueCrystalI
	LeagueMasterIII
	LeagueMasterII
	LeagueMasterI
	LeagueChampionIII
	LeagueChampionII
	LeagueChampionI
	LeagueTitanIII
	LeagueTitanII
	LeagueTitanI
	LeagueLegend
)

// CapitalLeagueID identifies a clan capital league
type CapitalLeagueID int

const (
	CapitalLeagueUnranked CapitalLeagueID = 85000000 + iota
	CapitalLeagueBronzeIII
	CapitalLeagueBronzeII
	CapitalLeagueBronzeI
	CapitalLeagueSilverIII
	CapitalLeagueSilverII
	CapitalLeagueSilverI
	CapitalLeagueGoldIII
	CapitalLeagueGoldII
	CapitalLeagueGoldI
	CapitalLeagueCrystalIII
	CapitalLeagueCrystalII
	CapitalLeagueCrystalI
	CapitalLeagueMasterIII
	CapitalLeagueMasterII
	CapitalLeagueMasterI
	CapitalLeagueChampionIII
	CapitalLeagueChampionII
	CapitalLeagueChampionI
	CapitalLeagueTitanIII
	CapitalLeagueTitanII
	CapitalLeagueTitanI
	CapitalLeagueLegend
)

// WarLeagueID identifies a clan war league
type WarLeagueID int

const (
	WarLeagueUnranked WarLeagueID = 48000000 + iota
	WarLeagueBronzeIII
	WarLeagueBronzeII
	WarLeagueBronzeI
	WarLeagueSilverIII
	WarLeagueSilverII
	WarLeagueSilverI
	WarLeagueGoldIII
	WarLeagueGoldII
	WarLeagueGoldI
	WarLeagueCrystalIII
	WarLeagueCrystalII
	WarLeagueCrystalI
	WarLeagueMasterIII
	WarLeagueMasterII
	WarLeagueMasterI
	WarLeagueChampionIII
	WarLeagueChampionII
	WarLeagueChampionI
)

// BuilderBaseLeagueID identifies a builder base trophy league
type BuilderBaseLeagueID int

const (
	BuilderBaseLeagueWoodV BuilderBaseLeagueID = 44000000 + iota
	BuilderBaseLeagueWoodIV
	BuilderBaseLeagueWoodIII
	BuilderBaseLeagueWoodII
	BuilderBaseLeagueWoodI
	BuilderBaseLeagueClayV
	BuilderBaseLeagueClayIV
	BuilderBaseLeagueClayIII
	BuilderBaseLeagueClayII
	BuilderBaseLeagueClayI
	BuilderBaseLeagueStoneV
	BuilderBaseLeagueStoneIV
	BuilderBaseLeagueStoneIII
	BuilderBaseLeagueStoneII
	BuilderBaseLeagueStoneI
	BuilderBaseLeagueCopperV
	BuilderBaseLeagueCopperIV
	BuilderBaseLeagueCopperIII
	BuilderBaseLeagueCopperII
	BuilderBaseLeagueCopperI
	BuilderBaseLeagueBrassIII
	BuilderBaseLeagueBrassII
	BuilderBaseLeagueBrassI
	BuilderBaseLeagueIronIII
	BuilderBaseLeagueIronII
	BuilderBaseLeagueIronI
	BuilderBaseLeagueSteelIII
	BuilderBaseLeagueSteelII
	BuilderBaseLeagueSteelI
	BuilderBaseLeagueTitaniumIII
	BuilderBaseLeagueTitaniumII
	BuilderBaseLeagueTitaniumI
	BuilderBaseLeaguePlatinumIII
	BuilderBaseLeaguePlatinumII
	BuilderBaseLeaguePlatinumI
	BuilderBaseLeagueEmeraldIII
	BuilderBaseLeagueEmeraldII
	BuilderBaseLeagueEmeraldI
	BuilderBaseLeagueRubyIII
	BuilderBaseLeagueRubyII
	BuilderBaseLeagueRubyI
	BuilderBaseLeagueDiamond
)

// League is a home village trophy league
type League struct {
	ID       LeagueID  `json:"id"`
	Name     string    `json:"name"`
	IconURLs *IconURLs `json:"iconUrls,omitempty"`
}

type LeagueList struct {
	Items  []League `json:"items"`
	Paging Paging   `json:"paging"`
}

type CapitalLeague struct {
	ID   CapitalLeagueID `json:"id"`
	Name string          `json:"name"`
}

type CapitalLeagueList struct {
	Items  []CapitalLeague `json:"items"`
	Paging Paging          `json:"paging"`
}

type WarLeague struct {
	ID   WarLeagueID `json:"id"`
	Name string      `json:"name"`
}

type WarLeagueList struct {
	Items  []WarLeague `json:"items"`
	Paging Paging      `json:"paging"`
}

type BuilderBaseLeague struct {
	ID   BuilderBaseLeagueID `json:"id"`
	Name string              `json:"name"`
}

type BuilderBaseLeagueList struct {
	Items  []BuilderBaseLeague `json:"items"`
	Paging Paging              `json:"paging"`
}

// LeagueSeason identifies a finished legend league season, e.g. "2023-08"
type LeagueSeason struct {
	ID string `json:"id"`
}

type LeagueSeasonList struct {
	Items  []LeagueSeason `json:"items"`
	Paging Paging         `json:"paging"`
}
