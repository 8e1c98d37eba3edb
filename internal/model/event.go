package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Discipline identifies the cycling discipline an event or skill level belongs to.
type Discipline string

const (
	DisciplineRoad Discipline = "road"
	DisciplineCX   Discipline = "cx"
)

// Disciplines lists the disciplines tracked for skill levels, in output order.
var Disciplines = []Discipline{DisciplineRoad, DisciplineCX}

// Gender of an athlete or a category.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderX      Gender = "X"
)

// ResultStatus describes how an athlete's race ended.
type ResultStatus string

const (
	StatusFinisher ResultStatus = "FINISHER"
	StatusDNF      ResultStatus = "DNF"
	StatusDNS      ResultStatus = "DNS"
	StatusOTL      ResultStatus = "OTL"
)

// SanctionedEventType is the sanctioning classification of an event. The empty
// value means the event is not sanctioned.
type SanctionedEventType string

const (
	EventTypeA                 SanctionedEventType = "A"
	EventTypeAA                SanctionedEventType = "AA"
	EventTypeAAUSA             SanctionedEventType = "AA-USA"
	EventTypeCyclingCanada     SanctionedEventType = "CYCLING-CANADA"
	EventTypeGrassroots        SanctionedEventType = "GRASSROOTS"
	EventTypeMassParticipation SanctionedEventType = "MASS-PARTICIPATION"
	EventTypeNone              SanctionedEventType = ""
)

// Valid reports whether t is one of the known classifications.
func (t SanctionedEventType) Valid() bool {
	switch t {
	case EventTypeA, EventTypeAA, EventTypeAAUSA, EventTypeCyclingCanada,
		EventTypeGrassroots, EventTypeMassParticipation, EventTypeNone:
		return true
	}
	return false
}

// Location of an event.
type Location struct {
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
}

// AthleteResult is one athlete's line in a category result set.
type AthleteResult struct {
	Position      *int         `json:"position"`
	Bib           string       `json:"bib,omitempty"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	UciID         string       `json:"uci_id,omitempty"`
	Team          string       `json:"team,omitempty"`
	City          string       `json:"city,omitempty"`
	Province      string       `json:"province,omitempty"`
	Gender        Gender       `json:"gender,omitempty"`
	Status        ResultStatus `json:"status"`
	FinishTime    string       `json:"finish_time,omitempty"`
	FinishGap     string       `json:"finish_gap,omitempty"`
	UpgradePoints *int         `json:"upgrade_points"`

	// ParticipantID is the provider's own row identifier. Internal only.
	ParticipantID string `json:"participant_id,omitempty"`
}

// EventCategory is the result set of one category within an event.
type EventCategory struct {
	Alias      string          `json:"alias"`
	Label      string          `json:"label"`
	Gender     Gender          `json:"gender,omitempty"`
	Starters   int             `json:"starters"`
	Finishers  int             `json:"finishers"`
	Umbrella   string          `json:"umbrella,omitempty"`
	IsUmbrella bool            `json:"is_umbrella,omitempty"`
	Results    []AthleteResult `json:"results"`
}

// CleanEventWithResults is the canonical record of one race event.
type CleanEventWithResults struct {
	Hash                string              `json:"hash"`
	Year                int                 `json:"year"`
	Date                string              `json:"date"`
	Name                string              `json:"name"`
	Organizer           string              `json:"organizer"`
	Discipline          Discipline          `json:"discipline"`
	SanctionedEventType SanctionedEventType `json:"sanctioned_event_type"`
	SerieAlias          string              `json:"serie_alias,omitempty"`
	Location            Location            `json:"location"`
	Categories          []EventCategory     `json:"categories"`

	// Internal fields, stripped before publication.
	Provider  Provider `json:"provider,omitempty"`
	RawKey    string   `json:"raw_key,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
}

// SerieEntry is one athlete's standing in a serie category.
type SerieEntry struct {
	Position    *int   `json:"position"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	UciID       string `json:"uci_id,omitempty"`
	Team        string `json:"team,omitempty"`
	Points      int    `json:"points"`
	RoundPoints []int  `json:"round_points,omitempty"`
}

// SerieStanding holds a serie's standings for one category.
type SerieStanding struct {
	Alias   string       `json:"alias"`
	Label   string       `json:"label"`
	Entries []SerieEntry `json:"entries"`
}

// CleanSerieWithResults is the canonical record of a serie and its standings.
type CleanSerieWithResults struct {
	Hash      string          `json:"hash"`
	Year      int             `json:"year"`
	Alias     string          `json:"alias"`
	Name      string          `json:"name"`
	Organizer string          `json:"organizer"`
	Rounds    []string        `json:"rounds,omitempty"`
	Standings []SerieStanding `json:"standings"`

	Provider Provider `json:"provider,omitempty"`
	RawKey   string   `json:"raw_key,omitempty"`
}

// EventHash derives the stable short hash that keys an event or serie
// document. Identical inputs always produce the same hash.
func EventHash(year int, organizer string, kind Kind, date string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", year, organizer, kind, date)))
	return hex.EncodeToString(sum[:])[:12]
}
