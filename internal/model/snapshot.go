package model

// MemberSnapshot is one athlete's registry entry at a snapshot date.
type MemberSnapshot struct {
	UciID         string                `json:"uci_id"`
	FirstName     string                `json:"first_name"`
	LastName      string                `json:"last_name"`
	Gender        Gender                `json:"gender,omitempty"`
	BirthYear     int                   `json:"birth_year,omitempty"`
	City          string                `json:"city,omitempty"`
	Province      string                `json:"province,omitempty"`
	Club          string                `json:"club,omitempty"`
	Licenses      []string              `json:"licenses,omitempty"`
	Levels        map[Discipline]int    `json:"levels,omitempty"`
	AgeCategories map[Discipline]string `json:"age_categories,omitempty"`
}

// SkillSnapshot is a dated pull of the membership registry.
type SkillSnapshot struct {
	Date    string           `json:"date"`
	Members []MemberSnapshot `json:"members"`
}
