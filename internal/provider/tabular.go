package provider

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/velodata/race-pipeline/internal/fetcher"
	"github.com/velodata/race-pipeline/internal/model"
)

// Header spellings seen across result sheets.
var (
	placeCols    = []string{"pos", "place", "position", "rank", "plc", "pl"}
	bibCols      = []string{"bib", "#", "plate", "number"}
	firstCols    = []string{"first name", "first", "firstname", "given name"}
	lastCols     = []string{"last name", "last", "lastname", "surname", "family name"}
	nameCols     = []string{"name", "rider", "athlete", "racer", "full name"}
	uciCols      = []string{"uci id", "uci", "uciid", "uci code"}
	teamCols     = []string{"team", "club", "team/club", "team name"}
	cityCols     = []string{"city", "hometown", "town"}
	provinceCols = []string{"province", "prov", "state", "region"}
	genderCols   = []string{"gender", "sex"}
	timeCols     = []string{"time", "finish time", "total time"}
	gapCols      = []string{"gap", "behind", "diff"}
	categoryCols = []string{"category", "cat", "race", "class"}
)

type columns struct {
	place, bib, first, last, name, uci, team, city, province, gender, time, gap, category int
}

func findColumns(t fetcher.Table) (columns, bool) {
	c := columns{
		place:    t.Column(placeCols...),
		bib:      t.Column(bibCols...),
		first:    t.Column(firstCols...),
		last:     t.Column(lastCols...),
		name:     t.Column(nameCols...),
		uci:      t.Column(uciCols...),
		team:     t.Column(teamCols...),
		city:     t.Column(cityCols...),
		province: t.Column(provinceCols...),
		gender:   t.Column(genderCols...),
		time:     t.Column(timeCols...),
		gap:      t.Column(gapCols...),
		category: t.Column(categoryCols...),
	}
	return c, c.place >= 0 && (c.last >= 0 || c.name >= 0)
}

// tableCategories groups the rows of a result table into categories: by the
// category column when there is one, otherwise under fallback.
func tableCategories(t fetcher.Table, cols columns, fallback string, into *[]rawCategory, index map[string]int) {
	for _, row := range t.Rows {
		label := fallback
		if cols.category >= 0 {
			if v := t.Cell(row, cols.category); v != "" {
				label = v
			}
		}
		r := rawResult{
			Place:     t.Cell(row, cols.place),
			Bib:       t.Cell(row, cols.bib),
			FirstName: t.Cell(row, cols.first),
			LastName:  t.Cell(row, cols.last),
			FullName:  t.Cell(row, cols.name),
			UciID:     t.Cell(row, cols.uci),
			Team:      t.Cell(row, cols.team),
			City:      t.Cell(row, cols.city),
			Province:  t.Cell(row, cols.province),
			Gender:    t.Cell(row, cols.gender),
			Time:      t.Cell(row, cols.time),
			Gap:       t.Cell(row, cols.gap),
		}
		if r.FirstName == "" && r.LastName == "" && r.FullName == "" {
			continue
		}
		i, ok := index[label]
		if !ok {
			i = len(*into)
			index[label] = i
			*into = append(*into, rawCategory{Label: label})
		}
		(*into)[i].Results = append((*into)[i].Results, r)
	}
}

// HTMLParser scrapes result tables out of stored HTML pages. Each table is a
// category, titled by its caption or the heading above it.
type HTMLParser struct {
	c *canonicalizer
}

// Parse implements Parser.
func (p *HTMLParser) Parse(b model.RawBundle) (Document, error) {
	if b.Kind != model.KindEvent {
		return Document{}, parseError(b, "html pages only carry events", nil)
	}
	tables, err := fetcher.HTMLTables([]byte(b.Payload))
	if err != nil {
		return Document{}, parseError(b, "unreadable html", err)
	}

	var raws []rawCategory
	index := make(map[string]int)
	for i, t := range tables {
		cols, ok := findColumns(t)
		if !ok {
			continue
		}
		fallback := t.Title
		if fallback == "" {
			fallback = "Category " + strconv.Itoa(i+1)
		}
		tableCategories(t, cols, fallback, &raws, index)
	}
	if len(raws) == 0 {
		return Document{}, parseError(b, "no result table found", nil)
	}

	event, err := p.c.event(b, "", "", model.Location{}, raws)
	if err != nil {
		return Document{}, err
	}
	return Document{Event: event}, nil
}

// ManualParser reads operator-supplied CSV or XLSX result sheets.
type ManualParser struct {
	c *canonicalizer
}

// Parse implements Parser.
func (p *ManualParser) Parse(b model.RawBundle) (Document, error) {
	if b.Kind != model.KindEvent {
		return Document{}, parseError(b, "manual sheets only carry events", nil)
	}
	data := []byte(b.Payload)
	if b.Encoding == model.PayloadBase64 {
		decoded, err := base64.StdEncoding.DecodeString(b.Payload)
		if err != nil {
			return Document{}, parseError(b, "bad base64 payload", err)
		}
		data = decoded
	}

	t, err := fetcher.ReadTabular(b.FileName, data)
	if err != nil {
		return Document{}, parseError(b, "unreadable sheet", err)
	}
	cols, ok := findColumns(t)
	if !ok {
		return Document{}, parseError(b, "sheet lacks place or name columns: "+strings.Join(t.Header, ","), nil)
	}

	var raws []rawCategory
	tableCategories(t, cols, "Open", &raws, make(map[string]int))
	event, err := p.c.event(b, "", "", model.Location{}, raws)
	if err != nil {
		return Document{}, err
	}
	return Document{Event: event}, nil
}
