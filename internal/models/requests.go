package models

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/footprint/internal/shared"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared request validator with the footprint rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return Category(fl.Field().String()).Position() >= 0
		})
	})
	return validate
}

// LoginRequest is the find-or-create login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"username"`
}

// Validate normalizes and checks the username.
func (r *LoginRequest) Validate() error {
	r.Username = NormalizeUsername(r.Username)
	if err := Validator().Struct(r); err != nil {
		return ValidateUsername(r.Username)
	}
	return nil
}

// PhotoInput is an uploaded photo to attach under a category.
type PhotoInput struct {
	Category Category `json:"category" validate:"required,category"`
	URL      string   `json:"url" validate:"required,url"`
}

// SaveCityRequest upserts a visited city.
//
// Nil fields keep the stored value; a non-nil VisitDate pointing at "" clears the date.
// A non-nil Photos replaces the whole photo set.
type SaveCityRequest struct {
	CityName  string        `json:"city_name" validate:"required,max=64"`
	VisitDate *string       `json:"visit_date,omitempty"`
	Rating    *int          `json:"rating,omitempty"`
	Comment   *string       `json:"comment,omitempty"`
	Photos    *[]PhotoInput `json:"photos,omitempty"`
}

// Validate checks the request at the boundary.
func (r *SaveCityRequest) Validate() error {
	r.CityName = strings.TrimSpace(r.CityName)
	if err := Validator().Struct(r); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	if r.VisitDate != nil && *r.VisitDate != "" {
		if _, err := time.Parse(DateLayout, *r.VisitDate); err != nil {
			return fmt.Errorf("%w: visit date %q must be YYYY-MM-DD", shared.ErrInvalidInput, *r.VisitDate)
		}
	}

	if r.Rating != nil && (*r.Rating < 0 || *r.Rating > MaxRating) {
		return fmt.Errorf("%w: rating %d outside 0-%d", shared.ErrInvalidInput, *r.Rating, MaxRating)
	}

	if r.Comment != nil {
		if err := Validator().Var(*r.Comment, fmt.Sprintf("max=%d", MaxCommentLength)); err != nil {
			return fmt.Errorf("%w: comment longer than %d characters", shared.ErrInvalidInput, MaxCommentLength)
		}
	}

	if r.Photos != nil {
		seen := make(map[Category]bool, len(*r.Photos))
		for _, p := range *r.Photos {
			if err := Validator().Struct(p); err != nil {
				return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
			}
			if seen[p.Category] {
				return fmt.Errorf("%w: duplicate %s photo", shared.ErrInvalidInput, p.Category)
			}
			seen[p.Category] = true
		}
	}
	return nil
}

// Apply merges the request onto city, leaving fields with nil request values untouched.
//
// Photos are not applied here; the repository replaces them in the same transaction.
func (r *SaveCityRequest) Apply(city *VisitedCity) {
	city.CityName = r.CityName
	if r.VisitDate != nil {
		city.VisitDate = *r.VisitDate
	}
	if r.Rating != nil {
		city.Rating = *r.Rating
	}
	if r.Comment != nil {
		city.Comment = *r.Comment
	}
}
