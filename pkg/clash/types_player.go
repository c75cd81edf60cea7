package clash

// Player is the full player profile
type Player struct {
	Tag                      string                  `json:"tag"`
	Name                     string                  `json:"name"`
	TownHallLevel            int                     `json:"townHallLevel"`
	TownHallWeaponLevel      *int                    `json:"townHallWeaponLevel,omitempty"`
	ExpLevel                 int                     `json:"expLevel"`
	Trophies                 int                     `json:"trophies"`
	BestTrophies             int                     `json:"bestTrophies"`
	WarStars                 int                     `json:"warStars"`
	AttackWins               int                     `json:"attackWins"`
	DefenseWins              int                     `json:"defenseWins"`
	BuilderHallLevel         *int                    `json:"builderHallLevel,omitempty"`
	BuilderBaseTrophies      int                     `json:"builderBaseTrophies"`
	BestBuilderBaseTrophies  int                     `json:"bestBuilderBaseTrophies"`
	Role                     Role                    `json:"role,omitempty"`
	WarPreference            WarPreference           `json:"warPreference,omitempty"`
	Donations                int                     `json:"donations"`
	DonationsReceived        int                     `json:"donationsReceived"`
	ClanCapitalContributions int                     `json:"clanCapitalContributions"`
	Clan                     *PlayerClan             `json:"clan,omitempty"`
	League                   *League                 `json:"league,omitempty"`
	BuilderBaseLeague        *BuilderBaseLeague      `json:"builderBaseLeague,omitempty"`
	LegendStatistics         *PlayerLegendStatistics `json:"legendStatistics,omitempty"`
	Achievements             []Achievement           `json:"achievements"`
	PlayerHouse              *PlayerHouse            `json:"playerHouse,omitempty"`
	Labels                   []Label                 `json:"labels,omitempty"`
	Troops                   []PlayerItemLevel       `json:"troops"`
	Heroes                   []Hero                  `json:"heroes"`
	HeroEquipment            []PlayerItemLevel       `json:"heroEquipment,omitempty"`
	Spells                   []PlayerItemLevel       `json:"spells"`
}

// InClan reports whether the player belongs to a clan
func (p *Player) InClan() bool {
	return p.Clan != nil
}

// Hero returns the home or builder base hero with the given name
func (p *Player) Hero(name string) (Hero, bool) {
	for _, h := range p.Heroes {
		if h.Name == name {
			return h, true
		}
	}
	return Hero{}, false
}

// Troop returns the troop with the given name in the given village
func (p *Player) Troop(name string, village Village) (PlayerItemLevel, bool) {
	for _, t := range p.Troops {
		if t.Name == name && t.Village == village {
			return t, true
		}
	}
	return PlayerItemLevel{}, false
}

// PlayerClan is the clan summary embedded in a player profile
type PlayerClan struct {
	Tag       string    `json:"tag"`
	Name      string    `json:"name"`
	ClanLevel int       `json:"clanLevel"`
	BadgeURLs BadgeURLs `json:"badgeUrls"`
}

// PlayerItemLevel is a troop, spell or piece of equipment
type PlayerItemLevel struct {
	Name               string  `json:"name"`
	Level              int     `json:"level"`
	MaxLevel           int     `json:"maxLevel"`
	Village            Village `json:"village"`
	SuperTroopIsActive *bool   `json:"superTroopIsActive,omitempty"`
}

// Maxed reports whether the item is at the maximum level
func (i PlayerItemLevel) Maxed() bool {
	return i.Level >= i.MaxLevel
}

type Hero struct {
	Name      string            `json:"name"`
	Level     int               `json:"level"`
	MaxLevel  int               `json:"maxLevel"`
	Village   Village           `json:"village"`
	Equipment []PlayerItemLevel `json:"equipment,omitempty"`
}

type Achievement struct {
	Name           string  `json:"name"`
	Stars          int     `json:"stars"`
	Value          int     `json:"value"`
	Target         int     `json:"target"`
	Info           string  `json:"info"`
	CompletionInfo *string `json:"completionInfo"`
	Village        Village `json:"village"`
}

type PlayerLegendStatistics struct {
	LegendTrophies            int                 `json:"legendTrophies"`
	CurrentSeason             *LegendSeasonResult `json:"currentSeason,omitempty"`
	PreviousSeason            *LegendSeasonResult `json:"previousSeason,omitempty"`
	BestSeason                *LegendSeasonResult `json:"bestSeason,omitempty"`
	PreviousBuilderBaseSeason *LegendSeasonResult `json:"previousBuilderBaseSeason,omitempty"`
	BestBuilderBaseSeason     *LegendSeasonResult `json:"bestBuilderBaseSeason,omitempty"`
}

type LegendSeasonResult struct {
	ID       string `json:"id,omitempty"`
	Rank     *int   `json:"rank,omitempty"`
	Trophies int    `json:"trophies"`
}

// PlayerHouseElementType is the part of a player house an element decorates
type PlayerHouseElementType string

const (
	PlayerHouseGround     PlayerHouseElementType = "ground"
	PlayerHouseRoof       PlayerHouseElementType = "roof"
	PlayerHouseFoot       PlayerHouseElementType = "foot"
	PlayerHouseDecoration PlayerHouseElementType = "decoration"
	PlayerHouseWalls      PlayerHouseElementType = "walls"
)

type PlayerHouse struct {
	Elements []PlayerHouseElement `json:"elements"`
}

type PlayerHouseElement struct {
	Type PlayerHouseElementType `json:"type"`
	ID   int                    `json:"id"`
}

// VerifyTokenRequest carries the in-game API token of a player
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse reports whether the token belongs to the player
type VerifyTokenResponse struct {
	Tag    string `json:"tag"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// Valid reports whether the token was accepted
func (r *VerifyTokenResponse) Valid() bool {
	return r.Status == "ok"
}
