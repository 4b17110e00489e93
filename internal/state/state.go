// package state persists the small amount of client state footprint keeps between runs:
// the map theme, the color mode and the logged-in identity.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/shared"
)

// Identity is the logged-in user.
type Identity struct {
	ID       string `toml:"id" json:"id"`
	Username string `toml:"username" json:"username"`
}

// State is the persisted client state.
type State struct {
	Theme     geo.Theme     `toml:"theme" json:"theme"`
	ColorMode geo.ColorMode `toml:"color_mode" json:"color_mode"`
	Identity  *Identity     `toml:"identity,omitempty" json:"identity,omitempty"`
}

// Default is the state before anything has been saved: light theme, colorful mode, logged out.
func Default() State {
	return State{Theme: geo.ThemeLight, ColorMode: geo.ColorModeColorful}
}

// LoggedIn reports whether an identity is set.
func (s State) LoggedIn() bool {
	return s.Identity != nil && s.Identity.ID != ""
}

// RequireIdentity returns the identity or [shared.ErrNotAuthenticated].
func (s State) RequireIdentity() (*Identity, error) {
	if !s.LoggedIn() {
		return nil, shared.ErrNotAuthenticated
	}
	return s.Identity, nil
}

// ToggleTheme flips between light and dark.
func (s *State) ToggleTheme() geo.Theme {
	s.Theme = s.Theme.Toggle()
	return s.Theme
}

// ToggleColorMode flips between colorful and single.
func (s *State) ToggleColorMode() geo.ColorMode {
	s.ColorMode = s.ColorMode.Toggle()
	return s.ColorMode
}

func (s *State) normalize() error {
	theme, err := geo.ParseTheme(string(s.Theme))
	if err != nil {
		return err
	}
	mode, err := geo.ParseColorMode(string(s.ColorMode))
	if err != nil {
		return err
	}
	s.Theme, s.ColorMode = theme, mode
	if s.Identity != nil && s.Identity.ID == "" {
		s.Identity = nil
	}
	return nil
}

// Store reads and writes [State] as TOML at a fixed path.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (st *Store) Path() string { return st.path }

// Load reads the state. A missing file yields [Default].
func (st *Store) Load() (State, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.load()
}

// Save writes the state atomically.
func (st *Store) Save(s State) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.save(s)
}

// Update loads the state, applies fn and saves the result. Nothing is written when fn fails.
func (st *Store) Update(fn func(*State) error) (State, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.load()
	if err != nil {
		return State{}, err
	}
	if err := fn(&s); err != nil {
		return State{}, err
	}
	if err := st.save(s); err != nil {
		return State{}, err
	}
	return s, nil
}

func (st *Store) load() (State, error) {
	s := Default()
	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: failed to parse state file %s: %w", shared.ErrInvalidConfig, st.path, err)
	}
	if err := s.normalize(); err != nil {
		return State{}, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	return s, nil
}

func (st *Store) save(s State) error {
	if err := s.normalize(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".footprint-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
