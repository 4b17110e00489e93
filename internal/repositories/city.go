package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/jmoiron/sqlx"
)

const cityColumns = "id, sequence, user_id, city_name, visit_date, rating, comment, created_at, updated_at"

type cityRow struct {
	ID        string         `db:"id"`
	Sequence  int            `db:"sequence"`
	UserID    string         `db:"user_id"`
	CityName  string         `db:"city_name"`
	VisitDate sql.NullString `db:"visit_date"`
	Rating    int            `db:"rating"`
	Comment   string         `db:"comment"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row cityRow) toModel() *models.VisitedCity {
	return &models.VisitedCity{
		ID:        row.ID,
		Sequence:  row.Sequence,
		UserID:    row.UserID,
		CityName:  row.CityName,
		VisitDate: row.VisitDate.String,
		Rating:    row.Rating,
		Comment:   row.Comment,
		Photos:    []models.Photo{},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

type photoRow struct {
	ID            string    `db:"id"`
	VisitedCityID string    `db:"visited_city_id"`
	Category      string    `db:"category"`
	URL           string    `db:"photo_url"`
	Position      int       `db:"position"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row photoRow) toModel() models.Photo {
	return models.Photo{
		ID:            row.ID,
		VisitedCityID: row.VisitedCityID,
		Category:      models.Category(row.Category),
		URL:           row.URL,
		Position:      row.Position,
		CreatedAt:     row.CreatedAt,
	}
}

// CityRepository persists visited cities and their photos, keyed by (user, city name).
type CityRepository struct {
	db *sqlx.DB
}

// NewCityRepository creates a new [CityRepository] with the given database connection
func NewCityRepository(db *sqlx.DB) *CityRepository {
	return &CityRepository{db: db}
}

// Save upserts the city named in req for userID and returns the stored record.
//
// Fields left nil in req keep their stored values. A non-nil Photos replaces the photo set in the same transaction.
func (r *CityRepository) Save(ctx context.Context, userID string, req models.SaveCityRequest) (*models.VisitedCity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	city, err := r.upsert(ctx, tx, userID, req)
	if err != nil {
		return nil, err
	}

	if req.Photos != nil {
		if err := r.replacePhotos(ctx, tx, city.ID, *req.Photos); err != nil {
			return nil, err
		}
	}

	saved, err := r.get(ctx, tx, userID, city.CityName)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit city: %w", err)
	}
	return saved, nil
}

// SetPhoto stores photo under its category for the named city, marking the city visited if needed.
// Other categories are left untouched.
func (r *CityRepository) SetPhoto(ctx context.Context, userID, cityName string, photo models.PhotoInput) (*models.VisitedCity, error) {
	req := models.SaveCityRequest{CityName: cityName}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := models.Validator().Struct(photo); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	city, err := r.upsert(ctx, tx, userID, req)
	if err != nil {
		return nil, err
	}

	query := tx.Rebind(`
		INSERT INTO city_photos (id, visited_city_id, category, photo_url, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (visited_city_id, category) DO UPDATE SET photo_url = excluded.photo_url
	`)
	_, err = tx.ExecContext(ctx, query,
		shared.GenerateID(), city.ID, string(photo.Category), photo.URL, photo.Category.Position(), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	saved, err := r.get(ctx, tx, userID, city.CityName)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit photo: %w", err)
	}
	return saved, nil
}

// RemovePhoto deletes the photo stored under category for the named city.
func (r *CityRepository) RemovePhoto(ctx context.Context, userID, cityName string, category models.Category) error {
	query := r.db.Rebind(`
		DELETE FROM city_photos
		WHERE category = ? AND visited_city_id IN (
			SELECT id FROM visited_cities WHERE user_id = ? AND city_name = ?
		)
	`)

	result, err := r.db.ExecContext(ctx, query, string(category), userID, cityName)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no %s photo for %s", shared.ErrNotFound, category, cityName)
	}
	return nil
}

// Get retrieves the visited city named cityName for userID, with its photos.
func (r *CityRepository) Get(ctx context.Context, userID, cityName string) (*models.VisitedCity, error) {
	return r.get(ctx, r.db, userID, cityName)
}

// ListByUser retrieves every visited city of userID in the order they were first marked, with photos.
func (r *CityRepository) ListByUser(ctx context.Context, userID string) ([]*models.VisitedCity, error) {
	var rows []cityRow
	query := r.db.Rebind(`SELECT ` + cityColumns + ` FROM visited_cities WHERE user_id = ? ORDER BY sequence ASC`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}

	var photos []photoRow
	query = r.db.Rebind(`
		SELECT p.id, p.visited_city_id, p.category, p.photo_url, p.position, p.created_at
		FROM city_photos p
		JOIN visited_cities c ON c.id = p.visited_city_id
		WHERE c.user_id = ?
		ORDER BY p.position ASC
	`)
	if err := r.db.SelectContext(ctx, &photos, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}

	byCity := make(map[string][]models.Photo, len(rows))
	for _, p := range photos {
		byCity[p.VisitedCityID] = append(byCity[p.VisitedCityID], p.toModel())
	}

	cities := make([]*models.VisitedCity, 0, len(rows))
	for _, row := range rows {
		city := row.toModel()
		if ps, ok := byCity[city.ID]; ok {
			city.Photos = ps
		}
		cities = append(cities, city)
	}
	return cities, nil
}

// VisitedNames returns the names of every city userID has marked.
func (r *CityRepository) VisitedNames(ctx context.Context, userID string) ([]string, error) {
	var names []string
	query := r.db.Rebind(`SELECT city_name FROM visited_cities WHERE user_id = ? ORDER BY sequence ASC`)
	if err := r.db.SelectContext(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query visited names: %w", err)
	}
	return names, nil
}

// Unmark deletes the visited city and its photos.
func (r *CityRepository) Unmark(ctx context.Context, userID, cityName string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	query := tx.Rebind(`SELECT id FROM visited_cities WHERE user_id = ? AND city_name = ?`)
	err = tx.GetContext(ctx, &id, query, userID, cityName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrCityNotFound, cityName)
	}
	if err != nil {
		return fmt.Errorf("failed to query city: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM city_photos WHERE visited_city_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete photos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM visited_cities WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete city: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unmark: %w", err)
	}
	return nil
}

// upsert merges req onto the stored row (if any) and writes it back keyed by (user_id, city_name).
func (r *CityRepository) upsert(ctx context.Context, tx *sqlx.Tx, userID string, req models.SaveCityRequest) (*models.VisitedCity, error) {
	city, err := r.getRow(ctx, tx, userID, req.CityName)
	switch {
	case errors.Is(err, shared.ErrCityNotFound):
		sequence, err := NextSequence(ctx, tx, "visited_cities")
		if err != nil {
			return nil, fmt.Errorf("failed to generate sequence: %w", err)
		}
		now := time.Now()
		city = &models.VisitedCity{
			ID:        shared.GenerateID(),
			Sequence:  sequence,
			UserID:    userID,
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	}

	req.Apply(city)
	city.UpdatedAt = time.Now()

	query := tx.Rebind(`
		INSERT INTO visited_cities (` + cityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, city_name) DO UPDATE SET
			visit_date = excluded.visit_date,
			rating = excluded.rating,
			comment = excluded.comment,
			updated_at = excluded.updated_at
	`)
	_, err = tx.ExecContext(ctx, query,
		city.ID, city.Sequence, city.UserID, city.CityName, nullString(city.VisitDate),
		city.Rating, city.Comment, city.CreatedAt, city.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert city: %w", err)
	}

	// The conflicting row keeps its own id.
	if err := tx.GetContext(ctx, &city.ID,
		tx.Rebind(`SELECT id FROM visited_cities WHERE user_id = ? AND city_name = ?`), userID, city.CityName,
	); err != nil {
		return nil, fmt.Errorf("failed to read city id: %w", err)
	}
	return city, nil
}

func (r *CityRepository) replacePhotos(ctx context.Context, tx *sqlx.Tx, cityID string, photos []models.PhotoInput) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM city_photos WHERE visited_city_id = ?`), cityID); err != nil {
		return fmt.Errorf("failed to clear photos: %w", err)
	}

	query := tx.Rebind(`
		INSERT INTO city_photos (id, visited_city_id, category, photo_url, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	now := time.Now()
	for _, p := range photos {
		_, err := tx.ExecContext(ctx, query, shared.GenerateID(), cityID, string(p.Category), p.URL, p.Category.Position(), now)
		if err != nil {
			return fmt.Errorf("failed to insert %s photo: %w", p.Category, err)
		}
	}
	return nil
}

func (r *CityRepository) getRow(ctx context.Context, q sqlx.QueryerContext, userID, cityName string) (*models.VisitedCity, error) {
	var row cityRow
	query := r.db.Rebind(`SELECT ` + cityColumns + ` FROM visited_cities WHERE user_id = ? AND city_name = ?`)
	err := sqlx.GetContext(ctx, q, &row, query, userID, cityName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrCityNotFound, cityName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query city: %w", err)
	}
	return row.toModel(), nil
}

func (r *CityRepository) get(ctx context.Context, q sqlx.QueryerContext, userID, cityName string) (*models.VisitedCity, error) {
	city, err := r.getRow(ctx, q, userID, cityName)
	if err != nil {
		return nil, err
	}

	var photos []photoRow
	query := r.db.Rebind(`
		SELECT id, visited_city_id, category, photo_url, position, created_at
		FROM city_photos WHERE visited_city_id = ? ORDER BY position ASC
	`)
	if err := sqlx.SelectContext(ctx, q, &photos, query, city.ID); err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	for _, p := range photos {
		city.Photos = append(city.Photos, p.toModel())
	}
	return city, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
