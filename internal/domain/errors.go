package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for well-known failure conditions that cross package
// boundaries.  Callers should use [errors.Is] to match these.
var (
	// ErrFetchFailed wraps any network, HTTP status, or decoding failure of
	// the store lookup.
	ErrFetchFailed = errors.New("store lookup failed")

	// ErrAppNotFound means the lookup succeeded but returned no record for
	// the app. Checks proceed without published metadata.
	ErrAppNotFound = errors.New("app not found in store")

	// ErrIncompatibleOSVersion means the published build requires a newer OS
	// than the device runs.
	ErrIncompatibleOSVersion = errors.New("store version requires a newer OS version")

	// ErrMissingStoreIdentifier indicates the store record has no app id.
	ErrMissingStoreIdentifier = errors.New("store record missing app identifier")

	// ErrMissingPublishedVersion indicates the store record has no version.
	ErrMissingPublishedVersion = errors.New("store record missing version")

	// ErrMissingReleaseDate indicates the store record has no usable
	// current-version release date.
	ErrMissingReleaseDate = errors.New("store record missing release date")

	// ErrMalformedURL is returned when the store page URL cannot be built
	// because no app id has been captured yet.
	ErrMalformedURL = errors.New("malformed store URL")

	// ErrNoUpdateAvailable is the negative verdict for an up-to-date app.
	ErrNoUpdateAvailable = errors.New("no update available")

	// ErrRecentlyPrompted is the negative verdict for an update that exists
	// but must not be shown yet.
	ErrRecentlyPrompted = errors.New("recently prompted")
)

// FetchError wraps an underlying lookup failure with the step that failed.
// It matches both ErrFetchFailed and the wrapped cause.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", ErrFetchFailed, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrFetchFailed, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// ReasonError maps a negative verdict reason to its sentinel error.
func ReasonError(r Reason) error {
	switch r {
	case ReasonRecentlyPrompted:
		return ErrRecentlyPrompted
	case ReasonNoUpdateAvailable:
		return ErrNoUpdateAvailable
	default:
		return nil
	}
}

// IsNegativeVerdict reports whether err means "nothing to show" rather than
// a failure to decide.
func IsNegativeVerdict(err error) bool {
	return errors.Is(err, ErrNoUpdateAvailable) || errors.Is(err, ErrRecentlyPrompted)
}

// ErrorCode returns a stable snake_case code for err, or "unknown".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAppNotFound):
		return "app_not_found"
	case errors.Is(err, ErrIncompatibleOSVersion):
		return "incompatible_os_version"
	case errors.Is(err, ErrMissingStoreIdentifier):
		return "missing_store_identifier"
	case errors.Is(err, ErrMissingPublishedVersion):
		return "missing_published_version"
	case errors.Is(err, ErrMissingReleaseDate):
		return "missing_release_date"
	case errors.Is(err, ErrMalformedURL):
		return "malformed_url"
	case errors.Is(err, ErrNoUpdateAvailable):
		return string(ReasonNoUpdateAvailable)
	case errors.Is(err, ErrRecentlyPrompted):
		return string(ReasonRecentlyPrompted)
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	default:
		return "unknown"
	}
}
