package model

import "strconv"

// Team is a resolved team. ID is set only for teams known to the alias table.
type Team struct {
	ID   *int   `json:"id,omitempty"`
	Name string `json:"name"`
}

// Key identifies a team for equality checks: the ID when known, the name otherwise.
func (t Team) Key() string {
	if t.ID != nil {
		return "id:" + strconv.Itoa(*t.ID)
	}
	return "name:" + t.Name
}

// Athlete is the aggregated identity of one athlete, keyed by UCI ID.
type Athlete struct {
	UciID         string                `json:"uci_id"`
	FirstName     string                `json:"first_name"`
	LastName      string                `json:"last_name"`
	Gender        Gender                `json:"gender,omitempty"`
	City          string                `json:"city,omitempty"`
	Province      string                `json:"province,omitempty"`
	BirthYear     int                   `json:"birth_year,omitempty"`
	Licenses      map[int][]string      `json:"licenses,omitempty"`
	SkillLevels   map[Discipline]int    `json:"skill_levels,omitempty"`
	AgeCategories map[Discipline]string `json:"age_categories,omitempty"`
	// LastUpdated is the date of the most recent evidence about this athlete.
	LastUpdated string `json:"last_updated,omitempty"`
}

// RaceRecord is a flattened per-athlete, per-event view of a result.
type RaceRecord struct {
	EventHash     string              `json:"event_hash"`
	Date          string              `json:"date"`
	EventName     string              `json:"event_name"`
	Discipline    Discipline          `json:"discipline"`
	Category      string              `json:"category"`
	CategoryLabel string              `json:"category_label"`
	EventType     SanctionedEventType `json:"event_type"`
	SerieAlias    string              `json:"serie_alias,omitempty"`
	Team          string              `json:"team,omitempty"`
	Position      *int                `json:"position"`
	Status        ResultStatus        `json:"status"`
	FieldSize     int                 `json:"field_size"`
	UpgradePoints *int                `json:"upgrade_points"`
}

// PointsType is the scoring regime an event's results fall under.
type PointsType string

const (
	PointsUpgrade    PointsType = "UPGRADE"
	PointsSubjective PointsType = "SUBJECTIVE"
)

// PointsEntry is one upgrade-points ledger line. A nil Points means no table
// matched the field size, which differs from scoring zero.
type PointsEntry struct {
	EventHash string     `json:"event_hash"`
	Date      string     `json:"date"`
	Category  string     `json:"category"`
	Position  int        `json:"position"`
	FieldSize int        `json:"field_size"`
	Points    *int       `json:"points"`
	Type      PointsType `json:"type"`
}

// UpgradeEstimate is an inferred category change date.
type UpgradeEstimate struct {
	Date       string  `json:"date"`
	Confidence float64 `json:"confidence"`
}

// UpgradeDates holds the estimates of one athlete by discipline. A missing
// discipline means no upgrade was detected.
type UpgradeDates map[Discipline]UpgradeEstimate

// DuplicateReport maps each colliding UCI ID to its name key.
type DuplicateReport map[string]string
