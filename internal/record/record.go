// Package record defines the bookmark record, its rendering preference, and
// the query helpers the API applies to a listed collection.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIType selects which rendering strategy a record prefers.
type APIType string

// Supported rendering preferences.
const (
	APITypeEmbed      APIType = "embed"
	APITypeAuto       APIType = "auto"
	APITypeTwitterAPI APIType = "twitterapi"
	APITypeTwscrape   APIType = "twscrape"
)

// DefaultAPIType is applied when a record is created without a preference.
const DefaultAPIType = APITypeEmbed

var (
	// ErrInvalidAPIType is returned when an apiType value is not recognized.
	ErrInvalidAPIType = errors.New("invalid apiType")
	// ErrNotFound is returned by a Store when no record carries an id.
	ErrNotFound = errors.New("record not found")
)

// ParseAPIType validates raw. An empty value maps to DefaultAPIType.
func ParseAPIType(raw string) (APIType, error) {
	switch t := APIType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return DefaultAPIType, nil
	case APITypeEmbed, APITypeAuto, APITypeTwitterAPI, APITypeTwscrape:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAPIType, raw)
	}
}

// Record is one stored bookmark.
type Record struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Note      string    `json:"note"`
	APIType   APIType   `json:"apiType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mode returns the effective rendering preference; records written before the
// field existed carry none.
func (r Record) Mode() APIType {
	if r.APIType == "" {
		return DefaultAPIType
	}
	return r.APIType
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Title   *string
	Tags    *[]string
	Note    *string
	APIType *APIType
}

// Apply returns a copy of r with the supplied fields replaced.
func (p Patch) Apply(r Record) Record {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.Tags != nil {
		r.Tags = CleanTags(*p.Tags)
	}
	if p.Note != nil {
		r.Note = strings.TrimSpace(*p.Note)
	}
	if p.APIType != nil {
		r.APIType = *p.APIType
	}
	return r
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Tags == nil && p.Note == nil && p.APIType == nil
}

// ParseTags splits a comma separated list, trimming entries and dropping empties.
func ParseTags(raw string) []string {
	return CleanTags(strings.Split(raw, ","))
}

// CleanTags trims every entry and drops the empty ones. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}
