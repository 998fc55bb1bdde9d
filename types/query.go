package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultTitle       = "unknown_file"
	DefaultAuthor      = "unknown"
	DefaultDescription = "No description provided"
	UnknownField       = "Unknown"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type ChatParams struct {
	Question string `form:"question" validate:"required,max=8000"`
	DocID    string `form:"doc_id" validate:"omitempty,max=128"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatParams) Validate() map[string]string {
	params.Question = strings.TrimSpace(params.Question)
	return validationErrors(validate.Struct(params))
}

func (m *Metadata) Validate() map[string]string {
	return validationErrors(validate.Struct(m))
}

func validationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	errors := make(map[string]string)
	for _, e := range errs {
		errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return errors
}

// ParseMetadata decodes the optional JSON metadata sent with an upload.
// Blank, malformed or invalid input never fails: defaults are substituted and
// ErrMalformedMetadata is returned alongside them so callers can log it.
func ParseMetadata(raw, filename string) (Metadata, error) {
	title := filename
	if title == "" {
		title = DefaultTitle
	}
	defaults := Metadata{
		Title:       title,
		Author:      DefaultAuthor,
		Description: DefaultDescription,
		Filename:    filename,
	}

	if strings.TrimSpace(raw) == "" {
		return defaults, nil
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		defaults.Description = DefaultDescription + " (invalid JSON)"
		return defaults, fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	}
	if errs := meta.Validate(); len(errs) > 0 {
		defaults.Description = DefaultDescription + " (invalid JSON)"
		return defaults, fmt.Errorf("%w: %v", ErrMalformedMetadata, errs)
	}

	meta.Title = strings.TrimSpace(meta.Title)
	meta.Author = strings.TrimSpace(meta.Author)
	meta.Description = strings.TrimSpace(meta.Description)
	if meta.Title == "" {
		meta.Title = defaults.Title
	}
	if meta.Author == "" {
		meta.Author = defaults.Author
	}
	if meta.Description == "" {
		meta.Description = defaults.Description
	}
	meta.Filename = filename
	return meta, nil
}
