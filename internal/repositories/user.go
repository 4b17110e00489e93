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

var _ models.Repository[*models.User] = (*UserRepository)(nil)

const userColumns = "id, sequence, username, created_at, updated_at, deleted_at"

type userRow struct {
	ID        string       `db:"id"`
	Sequence  int          `db:"sequence"`
	Username  string       `db:"username"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
	DeletedAt sql.NullTime `db:"deleted_at"`
}

func (row userRow) toModel() *models.User {
	user := models.NewUser(row.Sequence, row.Username)
	user.SetID(row.ID)
	user.SetCreatedAt(row.CreatedAt)
	user.SetUpdatedAt(row.UpdatedAt)
	if row.DeletedAt.Valid {
		user.SetDeletedAt(&row.DeletedAt.Time)
	}
	return user
}

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := tx.Rebind(`
		INSERT INTO users (id, sequence, username, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`)

	_, err = tx.ExecContext(ctx, query, id, sequence, user.Username(), user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`)

	var row userRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return row.toModel(), nil
}

// GetByUsername retrieves an active user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row, err := r.getByUsername(ctx, username, false)
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *UserRepository) getByUsername(ctx context.Context, username string, withDeleted bool) (*userRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	if !withDeleted {
		query += " AND deleted_at IS NULL"
	}

	var row userRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(query), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &row, nil
}

// FindOrCreate logs a user in by name, creating the user on first login.
//
// A soft-deleted user with the same name is restored. created reports whether a new row was inserted.
func (r *UserRepository) FindOrCreate(ctx context.Context, username string) (user *models.User, created bool, err error) {
	username = models.NormalizeUsername(username)
	if err := models.ValidateUsername(username); err != nil {
		return nil, false, err
	}

	row, err := r.getByUsername(ctx, username, true)
	switch {
	case err == nil && row.DeletedAt.Valid:
		if err := r.restore(ctx, row.ID); err != nil {
			return nil, false, err
		}
		row.DeletedAt = sql.NullTime{}
		return row.toModel(), false, nil
	case err == nil:
		return row.toModel(), false, nil
	case !errors.Is(err, shared.ErrUserNotFound):
		return nil, false, err
	}

	user = models.NewUser(0, username)
	if err := r.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (r *UserRepository) restore(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE users SET deleted_at = NULL, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to restore user: %w", err)
	}
	return nil
}

// Update renames an existing user in the database
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	query := r.db.Rebind(`
		UPDATE users
		SET username = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`)

	result, err := r.db.ExecContext(ctx, query, user.Username(), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())
	}

	user.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`)

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}

	return nil
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
//
// Supported criteria: "username" (exact match).
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if username, ok := criteria["username"].(string); ok && username != "" {
		query += " AND username = ?"
		args = append(args, username)
	}

	query += " ORDER BY sequence ASC"

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users := make([]*models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}
