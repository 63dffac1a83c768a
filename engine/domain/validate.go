package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Injection patterns that should never appear in a user query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

const minQueryLength = 3

// MinReleaseYear bounds catalog release years from below.
const MinReleaseYear = 1900

// ValidateTitle checks a Title before ingestion.
func ValidateTitle(t Title) error {
	if t.ShowID == "" {
		return NewValidationError("show_id", t.ShowID, ErrInvalidTitle)
	}
	if strings.TrimSpace(t.Name) == "" {
		return NewValidationError("title", t.Name, ErrInvalidTitle)
	}
	if strings.TrimSpace(t.Description) == "" {
		return NewValidationError("description", t.Description, ErrInvalidTitle)
	}
	switch t.Media {
	case MediaMovie, MediaTV:
	default:
		return NewValidationError("media", string(t.Media), ErrUnknownMedia)
	}
	for _, g := range t.Genres {
		if !ValidGenre(g) {
			return NewValidationError("genres", g, ErrUnknownGenre)
		}
	}
	for _, p := range t.Providers {
		if _, ok := ProviderBySlug(p); !ok {
			return NewValidationError("providers", p, ErrUnknownProvider)
		}
	}
	if t.ReleaseYear != 0 {
		if t.ReleaseYear < MinReleaseYear || t.ReleaseYear > time.Now().Year()+1 {
			return NewValidationError("release_year", fmt.Sprintf("%d", t.ReleaseYear), ErrYearOutOfRange)
		}
	}
	return nil
}

// ValidateQuery validates a recommendation query.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)

	if utf8.RuneCountInString(text) < minQueryLength {
		return NewValidationError("text", text, ErrQueryTooShort)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}

	for _, p := range q.Providers {
		if _, ok := ProviderBySlug(p); !ok {
			return NewValidationError("providers", p, ErrUnknownProvider)
		}
	}

	return nil
}
