package provider

import (
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
	"github.com/velodata/race-pipeline/pkg/membership"
)

// MembershipParser turns a registry pull into a dated skill snapshot. Members
// without a valid UCI ID are dropped: snapshots are keyed by UCI ID.
type MembershipParser struct{}

// Parse implements Parser.
func (p *MembershipParser) Parse(b model.RawBundle) (Document, error) {
	if b.Kind != model.KindSnapshot {
		return Document{}, parseError(b, "membership pulls only carry snapshots", nil)
	}
	if b.Date == "" {
		return Document{}, parseError(b, "snapshot has no date", nil)
	}

	var members []membership.Member
	if err := sonic.ConfigStd.UnmarshalFromString(b.Payload, &members); err != nil {
		return Document{}, parseError(b, "malformed membership json", err)
	}
	if err := validate.Var(members, "dive"); err != nil {
		return Document{}, parseError(b, "invalid membership payload", err)
	}

	snap := &model.SkillSnapshot{Date: b.Date, Members: make([]model.MemberSnapshot, 0, len(members))}
	for _, m := range members {
		id := normalize.FormatUciID(m.UciID)
		if !normalize.ValidUciID(id) {
			continue
		}
		ms := model.MemberSnapshot{
			UciID:     id,
			FirstName: normalize.FormatPersonName(m.FirstName),
			LastName:  normalize.FormatPersonName(m.LastName),
			Gender:    parseGender(m.Gender),
			BirthYear: m.BirthYear,
			City:      normalize.Capitalize(m.City),
			Club:      strings.TrimSpace(m.Club),
			Licenses:  m.Licenses,
		}
		if m.Province != "" {
			ms.Province = normalize.FormatProvince(m.Province)
		}
		levels := map[model.Discipline]int{}
		ages := map[model.Discipline]string{}
		if m.RoadLevel > 0 {
			levels[model.DisciplineRoad] = m.RoadLevel
		}
		if m.CXLevel > 0 {
			levels[model.DisciplineCX] = m.CXLevel
		}
		if m.RoadAgeCategory != "" {
			ages[model.DisciplineRoad] = m.RoadAgeCategory
		}
		if m.CXAgeCategory != "" {
			ages[model.DisciplineCX] = m.CXAgeCategory
		}
		if len(levels) > 0 {
			ms.Levels = levels
		}
		if len(ages) > 0 {
			ms.AgeCategories = ages
		}
		snap.Members = append(snap.Members, ms)
	}
	sort.SliceStable(snap.Members, func(i, j int) bool {
		return snap.Members[i].UciID < snap.Members[j].UciID
	})
	return Document{Snapshot: snap}, nil
}
