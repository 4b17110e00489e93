package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/state"
	"github.com/desertthunder/footprint/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgCitiesLoaded MsgKind = iota
	MsgCityUpdated
	MsgStateSaved
	MsgProgressUpdate
	MsgExportComplete
)

type citiesLoaded struct {
	visits []*models.VisitedCity
	stats  geo.Stats
	err    error
}

// cityUpdated carries the new visit for name; a nil visit means the city was unmarked.
type cityUpdated struct {
	name  string
	visit *models.VisitedCity
	stats geo.Stats
	err   error
}

type stateSaved struct {
	state  state.State
	notice string
	err    error
}

type exportComplete struct {
	result *tasks.ExportResult
	err    error
}

// citiesLoadedMsg is the constructor for [MsgCitiesLoaded]
func citiesLoadedMsg(visits []*models.VisitedCity, stats geo.Stats, err error) Msg {
	return Msg{kind: MsgCitiesLoaded, data: citiesLoaded{visits, stats, err}}
}

// cityUpdatedMsg is the constructor for [MsgCityUpdated]
func cityUpdatedMsg(name string, visit *models.VisitedCity, stats geo.Stats, err error) Msg {
	return Msg{kind: MsgCityUpdated, data: cityUpdated{name, visit, stats, err}}
}

// stateSavedMsg is the constructor for [MsgStateSaved]
func stateSavedMsg(s state.State, notice string, err error) Msg {
	return Msg{kind: MsgStateSaved, data: stateSaved{s, notice, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// exportCompleteMsg is the constructor for [MsgExportComplete]
func exportCompleteMsg(result *tasks.ExportResult, err error) Msg {
	return Msg{kind: MsgExportComplete, data: exportComplete{result, err}}
}
