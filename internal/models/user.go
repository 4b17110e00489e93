package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/footprint/internal/shared"
)

const (
	MinUsernameWeight = 2
	MaxUsernameWeight = 14
)

// User is a traveler. The username is a convenience label rather than a credential.
type User struct {
	id        string
	sequence  int
	username  string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewUser creates a [User] with creation and update timestamps set to now.
func NewUser(sequence int, username string) *User {
	now := time.Now()
	return &User{sequence: sequence, username: username, createdAt: now, updatedAt: now}
}

func (u *User) ID() string { return u.id }
func (u *User) Sequence() int { return u.sequence }
func (u *User) Username() string { return u.username }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }
func (u *User) DeletedAt() *time.Time { return u.deletedAt }

func (u *User) SetID(id string) { u.id = id }
func (u *User) SetSequence(seq int) { u.sequence = seq }
func (u *User) SetUsername(name string) { u.username = name }
func (u *User) SetCreatedAt(t time.Time) { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time) { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }
func (u *User) IsDeleted() bool { return u.deletedAt != nil }
func (u *User) String() string { return u.username }

// Validate checks the username rules applied at login.
func (u *User) Validate() error {
	return ValidateUsername(u.username)
}

// MarshalJSON exposes the public identity fields.
func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
	}{u.id, u.username, u.createdAt})
}

// NormalizeUsername trims surrounding whitespace from a typed username.
func NormalizeUsername(name string) string {
	return strings.TrimSpace(name)
}

// UsernameWeight measures a username where each CJK ideograph counts as two and any other rune as one.
func UsernameWeight(name string) int {
	weight := 0
	for _, r := range name {
		if isCJK(r) {
			weight += 2
		} else {
			weight++
		}
	}
	return weight
}

// ValidateUsername enforces a weighted length of 2-14 and the character set [A-Za-z0-9_-] plus CJK ideographs.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidUsername)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: username is not valid UTF-8", shared.ErrInvalidUsername)
	}
	for _, r := range name {
		if !isUsernameRune(r) {
			return fmt.Errorf("%w: character %q is not allowed", shared.ErrInvalidUsername, r)
		}
	}
	if w := UsernameWeight(name); w < MinUsernameWeight || w > MaxUsernameWeight {
		return fmt.Errorf("%w: length %d outside %d-%d (CJK characters count as 2)",
			shared.ErrInvalidUsername, w, MinUsernameWeight, MaxUsernameWeight)
	}
	return nil
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FA5
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return isCJK(r)
}
