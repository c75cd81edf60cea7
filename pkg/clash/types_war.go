package clash

// WarState is the phase of a clan war
type WarState string

const (
	WarStateClanNotFound  WarState = "clanNotFound"
	WarStateAccessDenied  WarState = "accessDenied"
	WarStateNotInWar      WarState = "notInWar"
	WarStateInMatchmaking WarState = "inMatchmaking"
	WarStateEnterWar      WarState = "enterWar"
	WarStateMatched       WarState = "matched"
	WarStatePreparation   WarState = "preparation"
	WarStateWar           WarState = "war"
	WarStateInWar         WarState = "inWar"
	WarStateEnded         WarState = "warEnded"
)

// WarResult is the outcome of a finished war from the clan's side
type WarResult string

const (
	WarResultWin  WarResult = "win"
	WarResultLose WarResult = "lose"
	WarResultTie  WarResult = "tie"
)

// BattleModifier alters war battle rules
type BattleModifier string

const (
	BattleModifierNone     BattleModifier = "none"
	BattleModifierHardMode BattleModifier = "hardMode"
)

// WarPreference is a player's war opt-in
type WarPreference string

const (
	WarPreferenceIn  WarPreference = "in"
	WarPreferenceOut WarPreference = "out"
)

// ClanWar is a regular or league war
type ClanWar struct {
	State                WarState       `json:"state"`
	TeamSize             int            `json:"teamSize,omitempty"`
	AttacksPerMember     *int           `json:"attacksPerMember,omitempty"`
	BattleModifier       BattleModifier `json:"battleModifier,omitempty"`
	PreparationStartTime string         `json:"preparationStartTime,omitempty"`
	StartTime            string         `json:"startTime,omitempty"`
	EndTime              string         `json:"endTime,omitempty"`
	WarStartTime         string         `json:"warStartTime,omitempty"`
	Clan                 *WarClan       `json:"clan,omitempty"`
	Opponent             *WarClan       `json:"opponent,omitempty"`
}

// Active reports whether the war is in preparation or battle day
func (w *ClanWar) Active() bool {
	switch w.State {
	case WarStatePreparation, WarStateInWar, WarStateWar:
		return true
	}
	return false
}

// Attacks returns every attack made by both sides, clan first
func (w *ClanWar) Attacks() []ClanWarAttack {
	var attacks []ClanWarAttack
	for _, side := range []*WarClan{w.Clan, w.Opponent} {
		if side == nil {
			continue
		}
		for _, m := range side.Members {
			attacks = append(attacks, m.Attacks...)
		}
	}
	return attacks
}

// WarClan is one side of a war
type WarClan struct {
	Tag                   string          `json:"tag,omitempty"`
	Name                  string          `json:"name,omitempty"`
	BadgeURLs             BadgeURLs       `json:"badgeUrls"`
	ClanLevel             int             `json:"clanLevel"`
	Attacks               *int            `json:"attacks,omitempty"`
	Stars                 int             `json:"stars"`
	DestructionPercentage float64         `json:"destructionPercentage"`
	ExpEarned             *int            `json:"expEarned,omitempty"`
	Members               []ClanWarMember `json:"members,omitempty"`
}

type ClanWarMember struct {
	Tag                string          `json:"tag"`
	Name               string          `json:"name"`
	MapPosition        int             `json:"mapPosition"`
	TownhallLevel      int             `json:"townhallLevel"`
	OpponentAttacks    int             `json:"opponentAttacks"`
	BestOpponentAttack *ClanWarAttack  `json:"bestOpponentAttack,omitempty"`
	Attacks            []ClanWarAttack `json:"attacks,omitempty"`
}

type ClanWarAttack struct {
	Order                 int    `json:"order"`
	AttackerTag           string `json:"attackerTag"`
	DefenderTag           string `json:"defenderTag"`
	Stars                 int    `json:"stars"`
	DestructionPercentage int    `json:"destructionPercentage"`
	Duration              int    `json:"duration"`
}

// ClanWarLog is a page of finished wars
type ClanWarLog struct {
	Items  []ClanWarLogEntry `json:"items"`
	Paging Paging            `json:"paging"`
}

// ClanWarLogEntry is a finished war. League war entries have no result and an
// anonymous opponent.
type ClanWarLogEntry struct {
	Result           WarResult      `json:"result,omitempty"`
	EndTime          string         `json:"endTime"`
	TeamSize         int            `json:"teamSize"`
	AttacksPerMember *int           `json:"attacksPerMember,omitempty"`
	BattleModifier   BattleModifier `json:"battleModifier,omitempty"`
	Clan             WarClan        `json:"clan"`
	Opponent         WarClan        `json:"opponent"`
}

// WarLeagueState is the phase of a clan war league group
type WarLeagueState string

const (
	WarLeagueStateGroupNotFound WarLeagueState = "groupNotFound"
	WarLeagueStateNotInWar      WarLeagueState = "notInWar"
	WarLeagueStatePreparation   WarLeagueState = "preparation"
	WarLeagueStateWar           WarLeagueState = "war"
	WarLeagueStateInWar         WarLeagueState = "inWar"
	WarLeagueStateEnded         WarLeagueState = "ended"
)

// ClanWarLeagueGroup is the eight clan group of a league season
type ClanWarLeagueGroup struct {
	Tag    string               `json:"tag,omitempty"`
	State  WarLeagueState       `json:"state"`
	Season string               `json:"season"`
	Clans  []ClanWarLeagueClan  `json:"clans"`
	Rounds []ClanWarLeagueRound `json:"rounds"`
}

// placeholderWarTag marks a round slot whose war is not scheduled yet
const placeholderWarTag = "#0"

// WarTags returns the scheduled war tags of every round in order
func (g *ClanWarLeagueGroup) WarTags() []string {
	var tags []string
	for _, r := range g.Rounds {
		for _, t := range r.WarTags {
			if t != "" && t != placeholderWarTag {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

type ClanWarLeagueClan struct {
	Tag       string                `json:"tag"`
	Name      string                `json:"name"`
	ClanLevel int                   `json:"clanLevel"`
	BadgeURLs BadgeURLs             `json:"badgeUrls"`
	Members   []ClanWarLeagueMember `json:"members"`
}

type ClanWarLeagueMember struct {
	Tag           string `json:"tag"`
	Name          string `json:"name"`
	TownHallLevel int    `json:"townHallLevel"`
}

type ClanWarLeagueRound struct {
	WarTags []string `json:"warTags"`
}
