package tasks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/services"
	"github.com/desertthunder/footprint/internal/shared"
)

// UserStore is the subset of the user repository the tracker needs.
type UserStore interface {
	FindOrCreate(ctx context.Context, username string) (*models.User, bool, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// CityStore is the subset of the city repository the tracker needs.
type CityStore interface {
	Save(ctx context.Context, userID string, req models.SaveCityRequest) (*models.VisitedCity, error)
	SetPhoto(ctx context.Context, userID, cityName string, photo models.PhotoInput) (*models.VisitedCity, error)
	RemovePhoto(ctx context.Context, userID, cityName string, category models.Category) error
	Get(ctx context.Context, userID, cityName string) (*models.VisitedCity, error)
	ListByUser(ctx context.Context, userID string) ([]*models.VisitedCity, error)
	VisitedNames(ctx context.Context, userID string) ([]string, error)
	Unmark(ctx context.Context, userID, cityName string) error
}

// Tracker records visited cities for users.
//
// When a dataset is set, city names are checked against it; otherwise any name is accepted.
type Tracker struct {
	users    UserStore
	cities   CityStore
	dataset  *geo.Dataset
	uploader services.Uploader
	logger   *log.Logger
}

// NewTracker creates a tracker. uploader may be nil, in which case uploads are rejected.
func NewTracker(users UserStore, cities CityStore, dataset *geo.Dataset, uploader services.Uploader, logger *log.Logger) *Tracker {
	if uploader == nil {
		uploader = services.NoopUploader{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Tracker{users: users, cities: cities, dataset: dataset, uploader: uploader, logger: logger}
}

// Dataset returns the city dataset, which may be nil.
func (t *Tracker) Dataset() *geo.Dataset { return t.dataset }

// Login finds or creates the user named username.
func (t *Tracker) Login(ctx context.Context, username string) (*models.User, bool, error) {
	req := models.LoginRequest{Username: username}
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	user, created, err := t.users.FindOrCreate(ctx, req.Username)
	if err != nil {
		return nil, false, err
	}
	if created {
		t.logger.Info("created user", "username", user.Username(), "id", user.ID())
	}
	return user, created, nil
}

// User looks up an existing user by name.
func (t *Tracker) User(ctx context.Context, username string) (*models.User, error) {
	return t.users.GetByUsername(ctx, models.NormalizeUsername(username))
}

// Save marks or updates a city for userID.
func (t *Tracker) Save(ctx context.Context, userID string, req models.SaveCityRequest) (*models.VisitedCity, error) {
	req.CityName = strings.TrimSpace(req.CityName)
	if err := t.checkCity(req.CityName); err != nil {
		return nil, err
	}
	return t.cities.Save(ctx, userID, req)
}

// Mark marks a city as visited without changing any stored details.
func (t *Tracker) Mark(ctx context.Context, userID, cityName string) (*models.VisitedCity, error) {
	return t.Save(ctx, userID, models.SaveCityRequest{CityName: cityName})
}

// Unmark removes a city and its photos.
func (t *Tracker) Unmark(ctx context.Context, userID, cityName string) error {
	return t.cities.Unmark(ctx, userID, strings.TrimSpace(cityName))
}

// Toggle marks an unvisited city or unmarks a visited one. visited reports the resulting state.
func (t *Tracker) Toggle(ctx context.Context, userID, cityName string) (visited bool, err error) {
	err = t.Unmark(ctx, userID, cityName)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, shared.ErrNotFound):
		return false, err
	}

	if _, err := t.Mark(ctx, userID, cityName); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns one visited city.
func (t *Tracker) Get(ctx context.Context, userID, cityName string) (*models.VisitedCity, error) {
	return t.cities.Get(ctx, userID, strings.TrimSpace(cityName))
}

// List returns every visited city for userID.
func (t *Tracker) List(ctx context.Context, userID string) ([]*models.VisitedCity, error) {
	return t.cities.ListByUser(ctx, userID)
}

// VisitedNames returns the names of every visited city for userID.
func (t *Tracker) VisitedNames(ctx context.Context, userID string) ([]string, error) {
	return t.cities.VisitedNames(ctx, userID)
}

// Stats counts visited and remaining cities. Without a dataset only the visited count is known.
func (t *Tracker) Stats(ctx context.Context, userID string) (geo.Stats, error) {
	names, err := t.cities.VisitedNames(ctx, userID)
	if err != nil {
		return geo.Stats{}, err
	}
	if t.dataset == nil {
		return geo.Stats{Visited: len(names), Total: len(names)}, nil
	}
	return t.dataset.Stats(names), nil
}

// Search returns dataset city names containing query.
func (t *Tracker) Search(query string, limit int) []string {
	if t.dataset == nil {
		return nil
	}
	return t.dataset.Search(query, limit)
}

// Upload sends a photo to the uploader and attaches the resulting URL to the city under category.
//
// Nothing is stored unless the upload succeeds.
func (t *Tracker) Upload(ctx context.Context, userID, cityName string, category models.Category, filename string, r io.Reader) (*models.VisitedCity, error) {
	cityName = strings.TrimSpace(cityName)
	if err := t.checkCity(cityName); err != nil {
		return nil, err
	}
	if category.Position() < 0 {
		return nil, fmt.Errorf("%w: unknown photo category %q", shared.ErrInvalidInput, category)
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	contentType := services.DetectContentType(filename, head)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s is not an image (%s)", shared.ErrInvalidInput, filename, contentType)
	}

	url, err := t.uploader.Upload(ctx, filename, contentType, br)
	if err != nil {
		t.logger.Error("photo upload failed", "city", cityName, "category", category, "provider", t.uploader.Name(), "error", err)
		return nil, err
	}
	t.logger.Debug("photo uploaded", "city", cityName, "category", category, "url", url)

	return t.cities.SetPhoto(ctx, userID, cityName, models.PhotoInput{Category: category, URL: url})
}

// RemovePhoto detaches the photo stored under category.
func (t *Tracker) RemovePhoto(ctx context.Context, userID, cityName string, category models.Category) error {
	return t.cities.RemovePhoto(ctx, userID, strings.TrimSpace(cityName), category)
}

func (t *Tracker) checkCity(name string) error {
	if name == "" {
		return fmt.Errorf("%w: city name is required", shared.ErrInvalidInput)
	}
	if t.dataset != nil && !t.dataset.Has(name) {
		return fmt.Errorf("%w: %q", shared.ErrUnknownCity, name)
	}
	return nil
}
