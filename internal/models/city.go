package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/footprint/internal/shared"
)

const (
	DateLayout       = "2006-01-02"
	MaxRating        = 10
	MaxCommentLength = 200
	StarFilled       = "★"
	StarEmpty        = "☆"
)

// Category tags a photo. A visited city holds at most one photo per category.
type Category string

const (
	CategoryScenery Category = "scenery"
	CategoryFriends Category = "friends"
	CategoryFood    Category = "food"
	CategoryLover   Category = "lover"
)

// Categories lists every [Category] in display order.
var Categories = []Category{CategoryScenery, CategoryFriends, CategoryFood, CategoryLover}

// ParseCategory resolves a category name (case-insensitive).
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Position() < 0 {
		return "", fmt.Errorf("%w: unknown photo category %q", shared.ErrInvalidInput, s)
	}
	return c, nil
}

// Position returns the display index of the category, or -1 if it is unknown.
func (c Category) Position() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return -1
}

// Label is the capitalized category name.
func (c Category) Label() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Photo is a remote image attached to a visited city.
type Photo struct {
	ID            string    `json:"id"`
	VisitedCityID string    `json:"visited_city_id"`
	Category      Category  `json:"category"`
	URL           string    `json:"url"`
	Position      int       `json:"position"`
	CreatedAt     time.Time `json:"created_at"`
}

// VisitedCity is a city the user has marked.
//
// VisitDate is empty or a YYYY-MM-DD calendar date. A Rating of 0 means unrated.
type VisitedCity struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"-"`
	UserID    string    `json:"user_id"`
	CityName  string    `json:"city_name"`
	VisitDate string    `json:"visit_date,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Photos    []Photo   `json:"photos"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPhotos reports whether the city qualifies for the photo section of an export.
func (c *VisitedCity) HasPhotos() bool {
	return len(c.Photos) > 0
}

// VisitTime parses VisitDate. ok is false for undated visits.
func (c *VisitedCity) VisitTime() (t time.Time, ok bool) {
	if c.VisitDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, c.VisitDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PhotoFor returns the photo stored under category.
func (c *VisitedCity) PhotoFor(category Category) (Photo, bool) {
	for _, p := range c.Photos {
		if p.Category == category {
			return p, true
		}
	}
	return Photo{}, false
}

// SortPhotos orders photos by category display order.
func (c *VisitedCity) SortPhotos() {
	sort.SliceStable(c.Photos, func(i, j int) bool {
		return c.Photos[i].Category.Position() < c.Photos[j].Category.Position()
	})
}

// Stars renders the rating as filled and empty star glyphs.
func (c *VisitedCity) Stars() string {
	return Stars(c.Rating)
}

// Stars renders rating (clamped to 0-10) as filled stars followed by empty stars, ten glyphs in total.
func Stars(rating int) string {
	rating = max(0, min(rating, MaxRating))
	return strings.Repeat(StarFilled, rating) + strings.Repeat(StarEmpty, MaxRating-rating)
}
