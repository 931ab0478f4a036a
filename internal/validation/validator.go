package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blog-comment-widget/internal/models"
	"github.com/google/uuid"
)

// MaxContentKeyLength bounds the content key (slug) length in bytes
const MaxContentKeyLength = 512

var (
	ErrMissingContentKey = errors.New("content key is required")
	ErrInvalidContentKey = errors.New("content key contains control characters")
	ErrContentKeyTooLong = errors.New("content key is too long")
	ErrEmptyBody         = errors.New("comment body must not be empty")
	ErrBodyTooLong       = errors.New("comment body is too long")
	ErrMissingTimestamp  = errors.New("timestamp is required")
	ErrDuplicateID       = errors.New("duplicate id")
)

// legacyAnonymousLabels are placeholder author labels written by the old
// document-store client; they are stored as the configured placeholder.
var legacyAnonymousLabels = map[string]bool{
	"匿名用户":      true,
	"Anonymous": true,
	"Guest":     true,
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Err     error       `json:"-"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

func newError(field string, err error, value interface{}) ValidationError {
	return ValidationError{Field: field, Message: err.Error(), Value: value, Err: err}
}

// ValidateContentKey checks the content key a comment is attached to
func ValidateContentKey(contentKey string) *ValidationError {
	if strings.TrimSpace(contentKey) == "" {
		e := newError("content_key", ErrMissingContentKey, nil)
		return &e
	}
	if len(contentKey) > MaxContentKeyLength {
		e := newError("content_key", ErrContentKeyTooLong, nil)
		return &e
	}
	for _, r := range contentKey {
		if unicode.IsControl(r) {
			e := newError("content_key", ErrInvalidContentKey, contentKey)
			return &e
		}
	}
	return nil
}

// ValidateSubmission validates a new comment before anything is written.
// The body is checked trimmed but is never modified.
func ValidateSubmission(contentKey, body string, maxBodyRunes int) []ValidationError {
	var errs []ValidationError

	if err := ValidateContentKey(contentKey); err != nil {
		errs = append(errs, *err)
	}

	if strings.TrimSpace(body) == "" {
		errs = append(errs, newError("body", ErrEmptyBody, nil))
	} else if maxBodyRunes > 0 && utf8.RuneCountInString(body) > maxBodyRunes {
		errs = append(errs, ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("comment body exceeds maximum of %d characters", maxBodyRunes),
			Err:     ErrBodyTooLong,
		})
	}

	return errs
}

// NormalizeAuthor trims the author label, substitutes the placeholder when it
// is blank and truncates it to models.MaxAuthorRunes.
func NormalizeAuthor(label, placeholder string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return placeholder
	}
	if utf8.RuneCountInString(label) > models.MaxAuthorRunes {
		runes := []rune(label)
		label = strings.TrimSpace(string(runes[:models.MaxAuthorRunes]))
	}
	return label
}

// Validator validates legacy export records during an import run
type Validator struct {
	idCache      map[string]bool
	maxBodyRunes int
}

// NewValidator creates a new validator instance
func NewValidator(maxBodyRunes int) *Validator {
	return &Validator{
		idCache:      make(map[string]bool),
		maxBodyRunes: maxBodyRunes,
	}
}

// AddID records an imported id for duplicate detection
func (v *Validator) AddID(id string) {
	v.idCache[id] = true
}

// ValidateLegacyComment validates a legacy record, resolving the two historical
// field-name variants (username/comment and user/text).
func (v *Validator) ValidateLegacyComment(rec *models.LegacyCommentNDJSON, lineNum int) []ValidationError {
	var errs []ValidationError

	if rec.ID != "" && v.idCache[CanonicalID(rec.ID)] {
		errs = append(errs, newError("id", ErrDuplicateID, rec.ID))
	}

	errs = append(errs, ValidateSubmission(rec.Slug, LegacyBody(rec), v.maxBodyRunes)...)
	for i := range errs {
		if errs[i].Field == "content_key" {
			errs[i].Field = "slug"
		}
	}

	if rec.Timestamp.IsZero() {
		errs = append(errs, newError("timestamp", ErrMissingTimestamp, nil))
	}

	return errs
}

// LegacyBody returns the comment text from whichever field variant is set
func LegacyBody(rec *models.LegacyCommentNDJSON) string {
	if rec.Comment != "" {
		return rec.Comment
	}
	return rec.Text
}

// LegacyAuthor returns the author label from whichever field variant is set,
// mapping the old client's placeholder labels to placeholder.
func LegacyAuthor(rec *models.LegacyCommentNDJSON, placeholder string) string {
	label := rec.Username
	if label == "" {
		label = rec.User
	}
	if legacyAnonymousLabels[strings.TrimSpace(label)] {
		return placeholder
	}
	return NormalizeAuthor(label, placeholder)
}

// legacyNamespace derives stable UUIDs from non-UUID document ids
var legacyNamespace = uuid.MustParse("6f1d2a4e-3c5b-4e8f-9a7d-2b1c0e9f8a63")

// CanonicalID maps a legacy document id to a UUID. UUIDs pass through;
// other ids hash to the same UUID every time. An empty id gets a random one.
func CanonicalID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(legacyNamespace, []byte(id)).String()
}
