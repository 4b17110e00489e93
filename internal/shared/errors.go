package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Identity errors
	ErrNotAuthenticated = fmt.Errorf("not logged in")
	ErrInvalidUsername  = fmt.Errorf("invalid username")

	// Store errors
	ErrNotFound     = fmt.Errorf("not found")
	ErrCityNotFound = fmt.Errorf("city %w", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrUnknownCity  = fmt.Errorf("unknown city")

	// Upload and asset errors
	ErrUploadFailed     = fmt.Errorf("upload failed")
	ErrAssetUnavailable = fmt.Errorf("asset unavailable")
	ErrInvalidDataURI   = fmt.Errorf("invalid data URI")

	// Export errors
	ErrSnapshotFailed     = fmt.Errorf("map snapshot failed")
	ErrNoExportableCities = fmt.Errorf("no visited cities with photos to export")
	ErrExportInProgress   = fmt.Errorf("an export is already in progress")
	ErrFontUnavailable    = fmt.Errorf("font unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
