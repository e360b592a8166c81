package store

import (
	"strings"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
)

// ValidatePathReservation enforces I2: no path in the shared namespace may
// equal "public" or begin with "public/".
func ValidatePathReservation(path string) error {
	if path == "public" || strings.HasPrefix(path, "public/") {
		return apperr.Validationf("path %q is reserved", path)
	}
	return nil
}

// ValidateAliasPath additionally rejects a leading slash and any ".."
// segment, per the alias-path hardening carried over from the original
// implementation (source_paths must never escape the serving root).
func ValidateAliasPath(path string) error {
	if path == "" {
		return apperr.Validationf("path must not be empty")
	}
	if strings.HasPrefix(path, "/") {
		return apperr.Validationf("path must not begin with '/'")
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return apperr.Validationf("path must not contain '..' segments")
		}
	}
	return ValidatePathReservation(path)
}

// NonEmpty enforces a required text field.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validationf("%s must not be empty", field)
	}
	return nil
}

// NonNegativeInterval enforces sync_interval_secs >= 0.
func NonNegativeInterval(secs int) error {
	if secs < 0 {
		return apperr.Validationf("sync_interval_secs must be >= 0")
	}
	return nil
}

// ResolvePassword implements I5: an empty/whitespace password on update
// means "leave unchanged".
func ResolvePassword(existing string, incoming *string) string {
	if incoming == nil || strings.TrimSpace(*incoming) == "" {
		return existing
	}
	return *incoming
}
