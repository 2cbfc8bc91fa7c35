package errors

import (
	"strings"
	"unicode"
)

// ValidateFieldName validates a dataset field name for safety and
// correctness before it is interpolated into store queries.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or whitespace
//   - No quoting or path characters that could be used for injection
//   - Maximum length of 128 characters
//
// Store-specific naming rules (e.g. reserved words) are left to the backends.
func ValidateFieldName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "field name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "field name too long (max 128 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "field name contains whitespace or control characters")
		}
	}

	if strings.ContainsAny(name, `"'$`+"`"+`/\`) {
		return New(ErrCodeInvalidInput, "field name contains invalid characters: %q", name)
	}

	return nil
}

// ValidateChunkSize validates a chunk size for range iteration.
func ValidateChunkSize(size int) error {
	if size <= 0 {
		return New(ErrCodeInvalidInput, "chunk size must be positive, got %d", size)
	}
	return nil
}
