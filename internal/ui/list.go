package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
)

var _ list.Item = cityItem{}

// cityItem wraps a dataset city and its visit, if any, to implement [list.Item].
type cityItem struct {
	name  string
	visit *models.VisitedCity
	mode  geo.ColorMode
	theme geo.Theme
}

func (i cityItem) Visited() bool       { return i.visit != nil }
func (i cityItem) FilterValue() string { return i.name }
func (i cityItem) Title() string       { return i.name }

// Description leads with the map swatch so the list mirrors the map colors.
func (i cityItem) Description() string {
	return fmt.Sprintf("%s %s", Swatch(i.name, i.Visited(), i.mode, i.theme), i.details())
}

func (i cityItem) details() string {
	if i.visit == nil {
		return "not visited"
	}

	parts := []string{}
	if i.visit.VisitDate != "" {
		parts = append(parts, i.visit.VisitDate)
	}
	if i.visit.Rating > 0 {
		parts = append(parts, i.visit.Stars())
	}
	if n := len(i.visit.Photos); n > 0 {
		parts = append(parts, fmt.Sprintf("%d photo%s", n, plural(n)))
	}
	if i.visit.Comment != "" {
		parts = append(parts, i.visit.Comment)
	}
	if len(parts) == 0 {
		return "visited"
	}
	return strings.Join(parts, " • ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// buildItems lists every dataset city in dataset order, followed by visited cities the dataset does not know.
func buildItems(names []string, visits []*models.VisitedCity, mode geo.ColorMode, theme geo.Theme) []list.Item {
	byName := make(map[string]*models.VisitedCity, len(visits))
	for _, v := range visits {
		byName[v.CityName] = v
	}

	items := make([]list.Item, 0, len(names)+len(visits))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
		items = append(items, cityItem{name: name, visit: byName[name], mode: mode, theme: theme})
	}
	for _, v := range visits {
		if !seen[v.CityName] {
			items = append(items, cityItem{name: v.CityName, visit: v, mode: mode, theme: theme})
		}
	}
	return items
}
