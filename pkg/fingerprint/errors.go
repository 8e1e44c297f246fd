package fingerprint

import (
	"errors"
	"fmt"
)

const (
	errorCodeTaxonomyInvalid = "CATALOG_TAXONOMY_INVALID"
	errorCodeFragmentInvalid = "CATALOG_FRAGMENT_INVALID"
	errorCodeSourceRequired  = "CATALOG_SOURCE_REQUIRED"
	errorCodeSourceConflict  = "CATALOG_SOURCE_CONFLICT"
	errorCodeStorageDisabled = "CATALOG_STORAGE_DISABLED"
	errorCodeSyncFailed      = "CATALOG_SYNC_FAILED"
	errorCodeEvidenceInvalid = "EVIDENCE_INVALID"
)

var (
	// ErrTaxonomyUnavailable indicates the category taxonomy could not be
	// loaded. Catalog construction cannot complete without it.
	ErrTaxonomyUnavailable = errors.New("category taxonomy unavailable")
	// ErrSourceRequired indicates neither --file nor --url was provided.
	ErrSourceRequired = errors.New("source required")
	// ErrSourceConflict indicates both --file and --url were provided.
	ErrSourceConflict = errors.New("multiple sources provided")
	// ErrStorageDisabled indicates there is no cache directory to sync into.
	ErrStorageDisabled = errors.New("storage disabled")
	// ErrInvalidEvidence indicates an evidence bundle failed validation.
	ErrInvalidEvidence = errors.New("invalid evidence")
)

// CatalogParseError reports a catalog source that could not be read or parsed.
// For the taxonomy source it also matches ErrTaxonomyUnavailable.
type CatalogParseError struct {
	Source   string
	Taxonomy bool
	Err      error
}

func (e *CatalogParseError) Error() string {
	kind := "fragment"
	if e.Taxonomy {
		kind = "taxonomy"
	}
	return fmt.Sprintf("parse %s %q: %v", kind, e.Source, e.Err)
}

func (e *CatalogParseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTaxonomyUnavailable) match taxonomy failures.
func (e *CatalogParseError) Is(target error) bool {
	return e.Taxonomy && target == ErrTaxonomyUnavailable
}

// Code implements the error code contract used by ErrorCode.
func (e *CatalogParseError) Code() string {
	if e.Taxonomy {
		return errorCodeTaxonomyInvalid
	}
	return errorCodeFragmentInvalid
}

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a catalog error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// NewSourceRequiredError formats a missing source error.
func NewSourceRequiredError() error {
	return WithErrorCode(fmt.Errorf("%w: either --file or --url must be provided", ErrSourceRequired), errorCodeSourceRequired)
}

// NewSourceConflictError formats a conflicting source error.
func NewSourceConflictError() error {
	return WithErrorCode(fmt.Errorf("%w: only one of --file or --url may be provided at a time", ErrSourceConflict), errorCodeSourceConflict)
}

// NewStorageDisabledError formats a storage disabled error.
func NewStorageDisabledError() error {
	return WithErrorCode(fmt.Errorf("%w: workspace disabled; specify --cache-dir", ErrStorageDisabled), errorCodeStorageDisabled)
}

// WrapSyncError annotates a sync failure.
func WrapSyncError(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeSyncFailed)
}

// NewEvidenceError annotates an evidence validation failure.
func NewEvidenceError(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("%w: %w", ErrInvalidEvidence, err), errorCodeEvidenceInvalid)
}

// ErrorCode resolves an error to its catalog error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrTaxonomyUnavailable):
		return errorCodeTaxonomyInvalid
	case errors.Is(err, ErrSourceRequired):
		return errorCodeSourceRequired
	case errors.Is(err, ErrSourceConflict):
		return errorCodeSourceConflict
	case errors.Is(err, ErrStorageDisabled):
		return errorCodeStorageDisabled
	case errors.Is(err, ErrInvalidEvidence):
		return errorCodeEvidenceInvalid
	default:
		return errorCodeSyncFailed
	}
}

// ExitCode maps catalog errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, ErrSourceRequired),
		errors.Is(err, ErrSourceConflict),
		errors.Is(err, ErrInvalidEvidence):
		return 2
	case errors.Is(err, ErrTaxonomyUnavailable):
		return 3
	case errors.Is(err, ErrStorageDisabled):
		return 7
	default:
		return 1
	}
}

// Suggestions provides CLI hints for catalog errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeTaxonomyInvalid:
		return []string{
			"Check the categories file:  --catalog.categories <path>",
			"Fall back to the built-in catalog by unsetting catalog.dir",
		}
	case errorCodeFragmentInvalid:
		return []string{
			"Validate the catalog:       webprint catalog validate",
		}
	case errorCodeSourceRequired:
		return []string{
			"Provide a source:           --file <path> or --url <address>",
			"Example:                    webprint catalog sync --url https://example/catalog.json",
		}
	case errorCodeSourceConflict:
		return []string{
			"Use only one source flag",
			"Remove either --file or --url",
		}
	case errorCodeStorageDisabled:
		return []string{
			"Set cache directory:        webprint catalog sync --cache-dir <path>",
			"Enable the workspace by dropping --no-workspace",
		}
	case errorCodeSyncFailed:
		return []string{
			"Retry with --url pointing to a reachable catalog",
			"Check network connectivity and cache directory permissions",
		}
	case errorCodeEvidenceInvalid:
		return []string{
			"Evidence must be a JSON object with url, html, headers, meta and scripts",
			"Pass a saved page instead:  webprint detect --html page.html --url https://example.com",
		}
	default:
		return nil
	}
}
