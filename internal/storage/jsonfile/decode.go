package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/JakeFAU/postshelf/internal/record"
)

// storedRecord mirrors the on-disk shape with loose types for the fields a
// hand edit is most likely to break.
type storedRecord struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	Tags      any            `json:"tags"`
	Note      string         `json:"note"`
	APIType   record.APIType `json:"apiType"`
	CreatedAt any            `json:"createdAt"`
}

// decodeRecord reads one array entry. An unreadable createdAt becomes the zero
// time, tags are cleaned, and a missing apiType reads as the default.
func decodeRecord(raw json.RawMessage) (record.Record, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return record.Record{}, errors.New("entry is null")
	}
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return record.Record{}, err
	}
	rec := record.Record{
		ID:        stored.ID,
		URL:       stored.URL,
		Title:     stored.Title,
		Tags:      tagsFrom(stored.Tags),
		Note:      stored.Note,
		APIType:   stored.APIType,
		CreatedAt: createdAtFrom(stored.CreatedAt),
	}
	rec.APIType = rec.Mode()
	return rec, nil
}

func tagsFrom(v any) []string {
	switch tags := v.(type) {
	case string:
		return record.ParseTags(tags)
	case []any:
		parts := make([]string, 0, len(tags))
		for _, item := range tags {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return record.CleanTags(parts)
	default:
		return []string{}
	}
}

// createdAtFrom accepts RFC 3339 strings and epoch milliseconds.
func createdAtFrom(v any) time.Time {
	switch ts := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(ts))
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	case float64:
		return time.UnixMilli(int64(ts)).UTC()
	default:
		return time.Time{}
	}
}
