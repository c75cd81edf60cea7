package clash

import "encoding/json"

// Status is the envelope status of every portal response. Code 0 means ok.
type Status struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// OK reports whether the portal accepted the request
func (s Status) OK() bool {
	return s.Code == 0
}

// BadgeURLs holds the clan badge image in three sizes
type BadgeURLs struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// IconURLs holds league and label icons. Not every size is sent for every icon.
type IconURLs struct {
	Small  string `json:"small,omitempty"`
	Tiny   string `json:"tiny,omitempty"`
	Medium string `json:"medium,omitempty"`
}

// Cursors points to the neighbouring pages of a list
type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Paging is attached to every list response
type Paging struct {
	Cursors Cursors `json:"cursors"`
}

// Next returns the cursor for the following page, if any
func (p Paging) Next() (string, bool) {
	return p.Cursors.After, p.Cursors.After != ""
}

// Label is a clan or player label
type Label struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	IconURLs IconURLs `json:"iconUrls"`
}

// LabelList is returned by the label endpoints
type LabelList struct {
	Items  []Label `json:"items"`
	Paging Paging  `json:"paging"`
}

// Language is a clan chat language
type Language struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	LanguageCode string `json:"languageCode"`
}

// Location is a country or region
type Location struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	IsCountry     bool   `json:"isCountry"`
	CountryCode   string `json:"countryCode,omitempty"`
	LocalizedName string `json:"localizedName,omitempty"`
}

// LocationList is returned by the locations endpoint
type LocationList struct {
	Items  []Location `json:"items"`
	Paging Paging     `json:"paging"`
}

// GoldPassSeason is the current gold pass season window
type GoldPassSeason struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Village identifies the base an item belongs to
type Village string

const (
	VillageHome        Village = "home"
	VillageBuilderBase Village = "builderBase"
	VillageClanCapital Village = "clanCapital"
)

// Role is a member's rank inside a clan
type Role string

const (
	RoleNotMember Role = "notMember"
	RoleMember    Role = "member"
	RoleElder     Role = "admin"
	RoleCoLeader  Role = "coLeader"
	RoleLeader    Role = "leader"
)

var roleRanks = map[Role]int{
	RoleNotMember: 0,
	RoleMember:    1,
	RoleElder:     2,
	RoleCoLeader:  3,
	RoleLeader:    4,
}

// AtLeast reports whether r ranks the same as or above other. Unknown roles
// rank lowest.
func (r Role) AtLeast(other Role) bool {
	return roleRanks[r] >= roleRanks[other]
}
