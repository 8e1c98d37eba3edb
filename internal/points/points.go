// Package points scores race results into category-upgrade points.
package points

import (
	"math"

	"github.com/velodata/race-pipeline/internal/model"
)

// Band is a field-size range and the points awarded by finishing position.
type Band struct {
	MinSize  int
	MaxSize  int
	Position []int
}

var upgradeBands = []Band{
	{MinSize: 5, MaxSize: 7, Position: []int{6, 4, 3}},
	{MinSize: 8, MaxSize: 9, Position: []int{8, 6, 5, 4}},
	{MinSize: 10, MaxSize: 14, Position: []int{10, 8, 7, 6, 5}},
	{MinSize: 15, MaxSize: 19, Position: []int{12, 10, 9, 8, 7, 6}},
	{MinSize: 20, MaxSize: 49, Position: []int{15, 12, 10, 8, 7, 6, 5, 4, 3, 2}},
	{MinSize: 50, MaxSize: math.MaxInt, Position: []int{20, 15, 12, 10, 8, 7, 6, 5, 4, 3, 2, 1}},
}

var subjectiveBands = []Band{
	{MinSize: 5, MaxSize: 9, Position: []int{3, 2, 1}},
	{MinSize: 10, MaxSize: 19, Position: []int{5, 3, 2, 1}},
	{MinSize: 20, MaxSize: math.MaxInt, Position: []int{7, 5, 3, 2, 1}},
}

// TypeFor returns the scoring regime of an event classification. The boolean
// is false when the classification earns no points at all.
func TypeFor(t model.SanctionedEventType) (model.PointsType, bool) {
	switch t {
	case model.EventTypeA, model.EventTypeAA, model.EventTypeAAUSA, model.EventTypeCyclingCanada:
		return model.PointsUpgrade, true
	case model.EventTypeGrassroots:
		return model.PointsSubjective, true
	}
	return "", false
}

func doubled(t model.SanctionedEventType) bool {
	return t == model.EventTypeAA || t == model.EventTypeAAUSA || t == model.EventTypeCyclingCanada
}

// Calculate returns the points for a 1-based finishing position in a field of
// fieldSize starters. It returns nil when the classification earns no points or
// no band covers the field size, and 0 when the position is past the table.
func Calculate(t model.SanctionedEventType, position, fieldSize int) *int {
	pointsType, ok := TypeFor(t)
	if !ok {
		return nil
	}

	bands := upgradeBands
	if pointsType == model.PointsSubjective {
		bands = subjectiveBands
	}

	band, ok := findBand(bands, fieldSize)
	if !ok {
		return nil
	}

	pts := 0
	if position >= 1 && position <= len(band.Position) {
		pts = band.Position[position-1]
	}
	if doubled(t) {
		pts *= 2
	}
	return &pts
}

func findBand(bands []Band, fieldSize int) (Band, bool) {
	for _, b := range bands {
		if fieldSize >= b.MinSize && fieldSize <= b.MaxSize {
			return b, true
		}
	}
	return Band{}, false
}

// FieldSize counts the starters of a result set: everyone except DNS.
func FieldSize(results []model.AthleteResult) int {
	n := 0
	for _, r := range results {
		if r.Status != model.StatusDNS {
			n++
		}
	}
	return n
}
