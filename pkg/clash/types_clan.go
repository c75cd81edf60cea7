package clash

// ClanType controls who may join a clan
type ClanType string

const (
	ClanTypeOpen       ClanType = "open"
	ClanTypeInviteOnly ClanType = "inviteOnly"
	ClanTypeClosed     ClanType = "closed"
)

// WarFrequency is the advertised war cadence of a clan
type WarFrequency string

const (
	WarFrequencyUnknown             WarFrequency = "unknown"
	WarFrequencyAlways              WarFrequency = "always"
	WarFrequencyMoreThanOncePerWeek WarFrequency = "moreThanOncePerWeek"
	WarFrequencyOncePerWeek         WarFrequency = "oncePerWeek"
	WarFrequencyLessThanOncePerWeek WarFrequency = "lessThanOncePerWeek"
	WarFrequencyNever               WarFrequency = "never"
	WarFrequencyAny                 WarFrequency = "any"
)

// Clan is the full clan profile. Search results carry a subset of the fields.
type Clan struct {
	Tag                         string         `json:"tag"`
	Name                        string         `json:"name"`
	Type                        ClanType       `json:"type"`
	Description                 string         `json:"description,omitempty"`
	Location                    *Location      `json:"location,omitempty"`
	IsFamilyFriendly            bool           `json:"isFamilyFriendly"`
	BadgeURLs                   BadgeURLs      `json:"badgeUrls"`
	ClanLevel                   int            `json:"clanLevel"`
	ClanPoints                  int            `json:"clanPoints"`
	ClanBuilderBasePoints       *int           `json:"clanBuilderBasePoints,omitempty"`
	ClanCapitalPoints           *int           `json:"clanCapitalPoints,omitempty"`
	CapitalLeague               *CapitalLeague `json:"capitalLeague,omitempty"`
	RequiredTrophies            *int           `json:"requiredTrophies,omitempty"`
	WarFrequency                WarFrequency   `json:"warFrequency,omitempty"`
	WarWinStreak                *int           `json:"warWinStreak,omitempty"`
	WarWins                     *int           `json:"warWins,omitempty"`
	WarTies                     *int           `json:"warTies,omitempty"`
	WarLosses                   *int           `json:"warLosses,omitempty"`
	IsWarLogPublic              bool           `json:"isWarLogPublic"`
	WarLeague                   *WarLeague     `json:"warLeague,omitempty"`
	Members                     int            `json:"members"`
	MemberList                  []ClanMember   `json:"memberList,omitempty"`
	Labels                      []Label        `json:"labels,omitempty"`
	RequiredBuilderBaseTrophies *int           `json:"requiredBuilderBaseTrophies,omitempty"`
	RequiredTownhallLevel       *int           `json:"requiredTownhallLevel,omitempty"`
	ClanCapital                 *ClanCapital   `json:"clanCapital,omitempty"`
	ChatLanguage                *Language      `json:"chatLanguage,omitempty"`
}

// Member returns the member with the given tag
func (c *Clan) Member(tag string) (ClanMember, bool) {
	for _, m := range c.MemberList {
		if m.Tag == tag {
			return m, true
		}
	}
	return ClanMember{}, false
}

// ClanList is a page of clan search results
type ClanList struct {
	Items  []Clan `json:"items"`
	Paging Paging `json:"paging"`
}

// ClanMember is one entry of a clan's member list
type ClanMember struct {
	Tag                 string             `json:"tag"`
	Name                string             `json:"name"`
	Role                Role               `json:"role"`
	TownHallLevel       int                `json:"townHallLevel"`
	ExpLevel            int                `json:"expLevel"`
	League              *League            `json:"league,omitempty"`
	BuilderBaseLeague   *BuilderBaseLeague `json:"builderBaseLeague,omitempty"`
	Trophies            int                `json:"trophies"`
	BuilderBaseTrophies int                `json:"builderBaseTrophies"`
	ClanRank            int                `json:"clanRank"`
	PreviousClanRank    int                `json:"previousClanRank"`
	Donations           int                `json:"donations"`
	DonationsReceived   int                `json:"donationsReceived"`
	PlayerHouse         *PlayerHouse       `json:"playerHouse,omitempty"`
}

type ClanMemberList struct {
	Items  []ClanMember `json:"items"`
	Paging Paging       `json:"paging"`
}

// ClanCapital summarises a clan's capital districts
type ClanCapital struct {
	CapitalHallLevel int            `json:"capitalHallLevel,omitempty"`
	Districts        []ClanDistrict `json:"districts,omitempty"`
}

type ClanDistrict struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	DistrictHallLevel int    `json:"districtHallLevel"`
}

// ClanCapitalRaidSeason is one raid weekend
type ClanCapitalRaidSeason struct {
	State                   string               `json:"state"`
	StartTime               string               `json:"startTime"`
	EndTime                 string               `json:"endTime"`
	CapitalTotalLoot        int                  `json:"capitalTotalLoot"`
	RaidsCompleted          int                  `json:"raidsCompleted"`
	TotalAttacks            int                  `json:"totalAttacks"`
	EnemyDistrictsDestroyed int                  `json:"enemyDistrictsDestroyed"`
	OffensiveReward         int                  `json:"offensiveReward"`
	DefensiveReward         int                  `json:"defensiveReward"`
	Members                 []RaidMember         `json:"members,omitempty"`
	AttackLog               []RaidAttackLogItem  `json:"attackLog"`
	DefenseLog              []RaidDefenseLogItem `json:"defenseLog"`
}

type ClanCapitalRaidSeasonList struct {
	Items  []ClanCapitalRaidSeason `json:"items"`
	Paging Paging                  `json:"paging"`
}

type RaidMember struct {
	Tag                    string `json:"tag"`
	Name                   string `json:"name"`
	Attacks                int    `json:"attacks"`
	AttackLimit            int    `json:"attackLimit"`
	BonusAttackLimit       int    `json:"bonusAttackLimit"`
	CapitalResourcesLooted int    `json:"capitalResourcesLooted"`
}

type RaidClan struct {
	Tag       string    `json:"tag"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	BadgeURLs BadgeURLs `json:"badgeUrls"`
}

type RaidAttackLogItem struct {
	Defender           RaidClan       `json:"defender"`
	AttackCount        int            `json:"attackCount"`
	DistrictCount      int            `json:"districtCount"`
	DistrictsDestroyed int            `json:"districtsDestroyed"`
	Districts          []RaidDistrict `json:"districts"`
}

type RaidDefenseLogItem struct {
	Attacker           RaidClan       `json:"attacker"`
	AttackCount        int            `json:"attackCount"`
	DistrictCount      int            `json:"districtCount"`
	DistrictsDestroyed int            `json:"districtsDestroyed"`
	Districts          []RaidDistrict `json:"districts"`
}

type RaidDistrict struct {
	ID                 int          `json:"id"`
	Name               string       `json:"name"`
	DistrictHallLevel  int          `json:"districtHallLevel"`
	DestructionPercent int          `json:"destructionPercent"`
	Stars              int          `json:"stars"`
	AttackCount        int          `json:"attackCount"`
	TotalLooted        int          `json:"totalLooted"`
	Attacks            []RaidAttack `json:"attacks,omitempty"`
}

type RaidAttack struct {
	Attacker           RaidAttacker `json:"attacker"`
	DestructionPercent int          `json:"destructionPercent"`
	Stars              int          `json:"stars"`
}

type RaidAttacker struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}
