package model

// Provider tags the origin format of a raw payload.
type Provider string

const (
	ProviderTimingApp  Provider = "timing-app"
	ProviderHTML       Provider = "html"
	ProviderManual     Provider = "manual"
	ProviderMembership Provider = "membership"
)

// Kind is the document kind a raw payload describes.
type Kind string

const (
	KindEvent    Kind = "event"
	KindSerie    Kind = "serie"
	KindSnapshot Kind = "snapshot"
)

// Source is one entry of a season's source index. It tells the fetch stage
// where a payload lives and carries the metadata providers cannot supply.
type Source struct {
	ID                  string              `json:"id" validate:"required"`
	Provider            Provider            `json:"provider" validate:"required,oneof=timing-app html manual membership"`
	Kind                Kind                `json:"kind" validate:"required,oneof=event serie snapshot"`
	URL                 string              `json:"url,omitempty" validate:"required_unless=Provider manual Provider membership"`
	File                string              `json:"file,omitempty" validate:"required_if=Provider manual"`
	Organizer           string              `json:"organizer" validate:"required_unless=Kind snapshot"`
	Date                string              `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Name                string              `json:"name,omitempty"`
	SerieAlias          string              `json:"serie_alias,omitempty"`
	Discipline          Discipline          `json:"discipline,omitempty" validate:"omitempty,oneof=road cx"`
	SanctionedEventType SanctionedEventType `json:"sanctioned_event_type,omitempty"`
	Location            Location            `json:"location,omitempty"`
	CombinedCategories  map[string][]string `json:"combined_categories,omitempty"`
}

// RawBundle is an immutable raw payload as fetched from a provider, plus the
// source metadata needed to parse it.
type RawBundle struct {
	Provider Provider `json:"provider"`
	Kind     Kind     `json:"kind"`
	Year     int      `json:"year"`
	Source   Source   `json:"source"`
	// Date is the snapshot date of membership pulls.
	Date     string   `json:"date,omitempty"`
	FileName string   `json:"file_name,omitempty"`
	// Encoding is "base64" for binary payloads such as XLSX sheets.
	Encoding string   `json:"encoding,omitempty"`
	Payload  string   `json:"payload"`
}

// PayloadBase64 marks a base64-encoded binary payload.
const PayloadBase64 = "base64"
