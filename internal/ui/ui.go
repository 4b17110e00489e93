package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/state"
	"github.com/desertthunder/footprint/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	CommentView
	ExportView
	ResultView
)

var openFile = shared.Open

// Options holds the dependencies of [NewModel]. Exports and Store are optional.
type Options struct {
	Tracker   *tasks.Tracker
	Exports   *tasks.ExportEngine
	Store     *state.Store
	User      *models.User
	State     state.State
	Title     string
	OutputDir string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	tracker      *tasks.Tracker
	exports      *tasks.ExportEngine
	store        *state.Store
	user         *models.User
	state        state.State
	title        string
	outputDir    string
	width        int
	height       int
	cities       list.Model
	loaded       bool
	stats        geo.Stats
	editor       textinput.Model
	editing      string
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.ExportResult
	notice       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	editor := textinput.New()
	editor.Placeholder = "What do you remember about this city?"
	editor.CharLimit = models.MaxCommentLength
	editor.Width = 60

	cities := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	cities.Title = "Cities"
	cities.DisableQuitKeybindings()

	st := opts.State
	if st.Theme == "" {
		st.Theme = geo.ThemeLight
	}
	if st.ColorMode == "" {
		st.ColorMode = geo.ColorModeColorful
	}

	return &Model{
		ctx:       ctx,
		view:      ListView,
		tracker:   opts.Tracker,
		exports:   opts.Exports,
		store:     opts.Store,
		user:      opts.User,
		state:     st,
		title:     opts.Title,
		outputDir: opts.OutputDir,
		width:     80,
		height:    24,
		cities:    cities,
		editor:    editor,
		bar:       progress.New(progress.WithDefaultGradient()),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading the user's visited cities.
func (m *Model) Init() tea.Cmd {
	return m.loadCities()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.cities.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ListView:
			return m.handleListKeys(msg)
		case CommentView:
			return m.handleCommentKeys(msg)
		case ExportView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCitiesLoaded:
		data := msg.data.(citiesLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.stats = data.stats
		m.loaded = true
		return m, m.cities.SetItems(buildItems(m.datasetNames(), data.visits, m.state.ColorMode, m.state.Theme))

	case MsgCityUpdated:
		data := msg.data.(cityUpdated)
		if data.err != nil {
			m.notice = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.stats = data.stats
		m.notice = ""
		return m, m.replaceItem(data.name, data.visit)

	case MsgStateSaved:
		data := msg.data.(stateSaved)
		if data.err != nil {
			m.notice = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.state = data.state
		m.notice = data.notice
		return m, m.restyleItems()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgExportComplete:
		data := msg.data.(exportComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ListView:
		return m.renderList()
	case CommentView:
		return m.renderComment()
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.cities.FilterState() == list.Filtering {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.cities, cmd = m.cities.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.selected(); ok {
			return m, m.toggleCity(item)
		}
		return m, nil
	case key.Matches(msg, m.keys.rate):
		if item, ok := m.selected(); ok {
			return m, m.rateCity(item)
		}
		return m, nil
	case key.Matches(msg, m.keys.comment):
		if item, ok := m.selected(); ok {
			return m, m.openEditor(item)
		}
		return m, nil
	case key.Matches(msg, m.keys.theme):
		return m, m.updateState(func(s *state.State) string {
			return fmt.Sprintf("theme: %s", s.ToggleTheme())
		})
	case key.Matches(msg, m.keys.mode):
		return m, m.updateState(func(s *state.State) string {
			return fmt.Sprintf("colors: %s", s.ToggleColorMode())
		})
	case key.Matches(msg, m.keys.export):
		return m, m.startExport()
	}

	var cmd tea.Cmd
	m.cities, cmd = m.cities.Update(msg)
	return m, cmd
}

// handleCommentKeys owns every key while the editor is open.
func (m *Model) handleCommentKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closeEditor()
		return m, nil
	case "enter":
		name, comment := m.editing, strings.TrimSpace(m.editor.Value())
		m.closeEditor()
		return m, m.saveCity(models.SaveCityRequest{CityName: name, Comment: &comment})
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.open):
		if m.result != nil && m.result.Path != "" {
			if err := openFile(m.result.Path); err != nil {
				m.notice = styles.warn.Render(fmt.Sprintf("Could not open %s: %v", m.result.Path, err))
			}
		}
		return m, nil
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.save):
		m.view = ListView
		m.result = nil
		m.err = nil
		m.notice = ""
		return m, nil
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ListView:
		m.cities, cmd = m.cities.Update(msg)
	case CommentView:
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m *Model) datasetNames() []string {
	if d := m.tracker.Dataset(); d != nil {
		return d.Names()
	}
	return nil
}

func (m *Model) selected() (cityItem, bool) {
	item, ok := m.cities.SelectedItem().(cityItem)
	return item, ok
}

func (m *Model) replaceItem(name string, visit *models.VisitedCity) tea.Cmd {
	for i, it := range m.cities.Items() {
		if ci, ok := it.(cityItem); ok && ci.name == name {
			ci.visit = visit
			return m.cities.SetItem(i, ci)
		}
	}
	return m.cities.InsertItem(len(m.cities.Items()), cityItem{name: name, visit: visit, mode: m.state.ColorMode, theme: m.state.Theme})
}

func (m *Model) restyleItems() tea.Cmd {
	items := m.cities.Items()
	for i, it := range items {
		if ci, ok := it.(cityItem); ok {
			ci.mode, ci.theme = m.state.ColorMode, m.state.Theme
			items[i] = ci
		}
	}
	return m.cities.SetItems(items)
}

func (m *Model) openEditor(item cityItem) tea.Cmd {
	m.editing = item.name
	m.editor.Reset()
	if item.visit != nil {
		m.editor.SetValue(item.visit.Comment)
	}
	m.view = CommentView
	return m.editor.Focus()
}

func (m *Model) closeEditor() {
	m.editor.Blur()
	m.editing = ""
	m.view = ListView
}

func (m *Model) loadCities() tea.Cmd {
	return func() tea.Msg {
		visits, err := m.tracker.List(m.ctx, m.user.ID())
		if err != nil {
			return citiesLoadedMsg(nil, geo.Stats{}, err)
		}
		stats, err := m.tracker.Stats(m.ctx, m.user.ID())
		return citiesLoadedMsg(visits, stats, err)
	}
}

func (m *Model) toggleCity(item cityItem) tea.Cmd {
	return func() tea.Msg {
		visited, err := m.tracker.Toggle(m.ctx, m.user.ID(), item.name)
		if err != nil {
			return cityUpdatedMsg(item.name, item.visit, m.stats, err)
		}

		var visit *models.VisitedCity
		if visited {
			if visit, err = m.tracker.Get(m.ctx, m.user.ID(), item.name); err != nil {
				return cityUpdatedMsg(item.name, item.visit, m.stats, err)
			}
		}
		stats, err := m.tracker.Stats(m.ctx, m.user.ID())
		return cityUpdatedMsg(item.name, visit, stats, err)
	}
}

// rateCity adds one star, wrapping from the maximum back to unrated. Rating an unvisited city marks it.
func (m *Model) rateCity(item cityItem) tea.Cmd {
	rating := 1
	if item.visit != nil {
		rating = (item.visit.Rating + 1) % (models.MaxRating + 1)
	}
	return m.saveCity(models.SaveCityRequest{CityName: item.name, Rating: &rating})
}

func (m *Model) saveCity(req models.SaveCityRequest) tea.Cmd {
	return func() tea.Msg {
		visit, err := m.tracker.Save(m.ctx, m.user.ID(), req)
		if err != nil {
			return cityUpdatedMsg(req.CityName, nil, m.stats, err)
		}
		stats, err := m.tracker.Stats(m.ctx, m.user.ID())
		return cityUpdatedMsg(req.CityName, visit, stats, err)
	}
}

// updateState applies fn to the persisted state, or to the in-memory copy when there is no store.
func (m *Model) updateState(fn func(*state.State) string) tea.Cmd {
	current := m.state
	return func() tea.Msg {
		var notice string
		mutate := func(s *state.State) error {
			notice = fn(s)
			return nil
		}

		if m.store == nil {
			next := current
			_ = mutate(&next)
			return stateSavedMsg(next, notice, nil)
		}

		next, err := m.store.Update(mutate)
		return stateSavedMsg(next, notice, err)
	}
}

func (m *Model) startExport() tea.Cmd {
	if m.exports == nil {
		m.notice = styles.warn.Render("export is not configured")
		return nil
	}
	if m.exports.Busy() {
		m.notice = styles.warn.Render("an export is already running")
		return nil
	}

	m.view = ExportView
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan Msg, 1)

	opts := tasks.ExportOpts{
		Title:     m.title,
		OutputDir: m.outputDir,
		Mode:      m.state.ColorMode,
		Theme:     m.state.Theme,
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	progressChan, doneChan := m.progressChan, m.doneChan
	go func() {
		result, err := m.exports.Export(m.ctx, m.user, opts, progressChan)
		doneChan <- exportCompleteMsg(result, err)
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progressChan == nil {
			return exportCompleteMsg(nil, nil)
		}

		update, ok := <-progressChan
		if !ok {
			return <-doneChan
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) footer() string {
	line := fmt.Sprintf("Visited %d • Remaining %d • Total %d • Theme %s • Colors %s",
		m.stats.Visited, m.stats.Remaining, m.stats.Total, m.state.Theme, m.state.ColorMode)
	if m.user != nil {
		line = fmt.Sprintf("%s • %s", m.user.Username(), line)
	}
	return styles.footer.Render(line)
}

func (m *Model) renderList() string {
	if !m.loaded {
		return "Loading cities..."
	}

	helpKeys := []key.Binding{m.keys.filter, m.keys.toggle, m.keys.rate, m.keys.comment, m.keys.theme, m.keys.mode, m.keys.export, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	out := fmt.Sprintf("%s\n%s\n%s", m.cities.View(), m.footer(), helpView)
	if m.notice != "" {
		out = fmt.Sprintf("%s\n%s", out, m.notice)
	}
	return out
}

func (m *Model) renderComment() string {
	title := styles.title.Render(fmt.Sprintf("Comment for %s", m.editing))
	counter := styles.help.Render(fmt.Sprintf("%d/%d", len([]rune(m.editor.Value())), models.MaxCommentLength))

	helpKeys := []key.Binding{m.keys.save, m.keys.back}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, m.editor.View(), counter, helpView)
}

func (m *Model) renderExport() string {
	title := styles.title.Render("Exporting Footprints")

	var phase string
	switch m.progress.Phase {
	case tasks.LoadCities, tasks.FilterCities:
		phase = "Loading cities..."
	case tasks.RenderSnapshot:
		phase = "Rendering map snapshot..."
	case tasks.LoadFont:
		phase = "Loading font..."
	case tasks.FetchPhotos:
		phase = fmt.Sprintf("Fetching photos (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.LayoutPages:
		phase = "Laying out pages..."
	case tasks.WriteDocument:
		phase = "Writing document..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n%s", title, m.bar.ViewAs(m.progress.Percent/100), phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Export failed: %v\n\nPress esc to go back, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress esc to go back, q to quit")
	}

	title := styles.ok.Render("✓ Export Complete!")
	info := fmt.Sprintf(
		"\nFile: %s\nCities: %d\nPhotos: %d\nPages: %d",
		m.result.Path,
		m.result.Cities,
		m.result.Photos,
		m.result.Pages,
	)

	var warning string
	if !m.result.FontEmbedded {
		warning = "\n\n" + styles.warn.Render("Document font unavailable; text was rendered with the built-in font.")
	}
	if m.notice != "" {
		warning += "\n\n" + m.notice
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	if m.result.Path != "" {
		helpKeys = append([]key.Binding{m.keys.open}, helpKeys...)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, warning, helpView)
}
