package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/record"
)

// ErrNotFound is returned when no record carries the requested id.
var ErrNotFound = record.ErrNotFound

// RecordStore keeps the record collection in a single JSON array file.
//
// There is no locking: two overlapping mutations each read the file, change
// their copy and write it back, so the later write wins.
type RecordStore struct {
	path   string
	logger *zap.Logger
}

var _ record.Store = (*RecordStore)(nil)

// NewRecordStore validates path and prepares its directory.
func NewRecordStore(path string, logger *zap.Logger) (*RecordStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("records file: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{path: path, logger: logger}, nil
}

// Path returns the backing file path.
func (s *RecordStore) Path() string {
	return s.path
}

// Init creates the file holding an empty array when it does not exist yet.
func (s *RecordStore) Init(ctx context.Context) error {
	data, err := readOptional(s.path)
	if err != nil {
		return err
	}
	if data != nil {
		return nil
	}
	if err := s.write(ctx, []record.Record{}); err != nil {
		return err
	}
	s.logger.Info("created records file", zap.String("path", s.path))
	return nil
}

// List returns every stored record in file order. Entries that cannot be read
// as an object are skipped with a warning and dropped by the next write.
func (s *RecordStore) List(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	data, err := readOptional(s.path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []record.Record{}, nil
	}
	if trimmed[0] != '[' {
		s.logger.Warn("records file does not hold an array, treating as empty", zap.String("path", s.path))
		return []record.Record{}, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode records file: %w", err)
	}
	records := make([]record.Record, 0, len(entries))
	for i, entry := range entries {
		rec, err := decodeRecord(entry)
		if err != nil {
			s.logger.Warn("skipping unreadable record",
				zap.String("path", s.path), zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Append adds rec to the end of the collection. An unset apiType is stored as
// the default.
func (s *RecordStore) Append(ctx context.Context, rec record.Record) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	rec.APIType = rec.Mode()
	records = append(records, rec)
	return s.write(ctx, records)
}

// Replace applies patch to the record with the given id and returns the result.
func (s *RecordStore) Replace(ctx context.Context, id string, patch record.Patch) (record.Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return record.Record{}, err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	records[idx] = patch.Apply(records[idx])
	if err := s.write(ctx, records); err != nil {
		return record.Record{}, err
	}
	return records[idx], nil
}

// Remove deletes the record with the given id. The file is left untouched
// when the id is unknown.
func (s *RecordStore) Remove(ctx context.Context, id string) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	records = slices.Delete(records, idx, idx+1)
	return s.write(ctx, records)
}

func (s *RecordStore) write(ctx context.Context, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if records == nil {
		records = []record.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("write records file: %w", err)
	}
	return nil
}

func indexOf(records []record.Record, id string) int {
	return slices.IndexFunc(records, func(r record.Record) bool {
		return r.ID == id
	})
}
