package jsonfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/postshelf/internal/record"
	"github.com/JakeFAU/postshelf/internal/storage/jsonfile"
)

func newStore(t *testing.T) (*jsonfile.RecordStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "records.json")
	store, err := jsonfile.NewRecordStore(path, nil)
	require.NoError(t, err)
	return store, path
}

func sampleRecord(id string, created time.Time) record.Record {
	return record.Record{
		ID:        id,
		URL:       "https://x.com/user/status/" + id,
		Title:     "title " + id,
		Tags:      []string{"a", "b"},
		Note:      "note",
		APIType:   record.APITypeEmbed,
		CreatedAt: created,
	}
}

func TestNewRecordStore(t *testing.T) {
	t.Run("MissingPath", func(t *testing.T) {
		_, err := jsonfile.NewRecordStore("", nil)
		assert.Error(t, err)
	})

	t.Run("ParentIsAFile", func(t *testing.T) {
		tempFile, err := os.CreateTemp(t.TempDir(), "file")
		require.NoError(t, err)
		require.NoError(t, tempFile.Close())

		_, err = jsonfile.NewRecordStore(filepath.Join(tempFile.Name(), "records.json"), nil)
		assert.Error(t, err)
	})
}

func TestRecordStoreInit(t *testing.T) {
	ctx := context.Background()
	store, path := newStore(t)

	require.NoError(t, store.Init(ctx))
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	require.NoError(t, store.Append(ctx, sampleRecord("1", time.Unix(10, 0).UTC())))
	require.NoError(t, store.Init(ctx), "init must not clobber an existing file")
	got, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecordStoreListTolerantReads(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingFile", func(t *testing.T) {
		store, _ := newStore(t)
		got, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("BlankFile", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
		got, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ObjectInsteadOfArray", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"x"}`), 0o600))
		got, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("CorruptArray", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte(`[{"id":`), 0o600))
		_, err := store.List(ctx)
		assert.Error(t, err)
	})
}

func TestRecordStoreListRepairsHandEditedEntries(t *testing.T) {
	ctx := context.Background()
	store, path := newStore(t)
	content := `[
		{"id":"good","url":"https://x.com/a/status/1","title":"ok","tags":["x"],"note":"","apiType":"auto","createdAt":"2025-01-02T03:04:05.000Z"},
		{"id":"bad-date","url":"https://x.com/a/status/2","title":"t","tags":null,"note":"","createdAt":""},
		{"id":"epoch","url":"https://x.com/a/status/3","title":"t","tags":" a, ,b ","createdAt":1700000000000},
		"not an object",
		null
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "good", got[0].ID)
	assert.Equal(t, record.APITypeAuto, got[0].APIType)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), got[0].CreatedAt)

	assert.Equal(t, "bad-date", got[1].ID)
	assert.True(t, got[1].CreatedAt.IsZero())
	assert.NotNil(t, got[1].Tags)
	assert.Empty(t, got[1].Tags)
	assert.Equal(t, record.APITypeEmbed, got[1].APIType, "missing apiType reads as the default")

	assert.Equal(t, []string{"a", "b"}, got[2].Tags)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got[2].CreatedAt)
}

func TestRecordStoreMutatesAroundBadEntries(t *testing.T) {
	ctx := context.Background()
	store, path := newStore(t)
	content := `[
		{"id":"keep","url":"https://x.com/a/status/1","title":"ok","tags":[],"note":"","createdAt":"2025-01-02T03:04:05Z"},
		{"id":"bad","url":"https://x.com/a/status/2","title":"t","tags":null,"note":"","createdAt":""}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, store.Remove(ctx, "bad"))
	note := "fixed"
	updated, err := store.Replace(ctx, "keep", record.Patch{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Note)

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].ID)

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"apiType": "embed"`)
	assert.Contains(t, string(data), `"tags": []`)
}

func TestRecordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	require.NoError(t, store.Init(ctx))

	first := sampleRecord("r1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	second := sampleRecord("r2", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])

	note := "x"
	updated, err := store.Replace(ctx, "r1", record.Patch{Note: &note})
	require.NoError(t, err)
	want := first
	want.Note = "x"
	assert.Equal(t, want, updated)

	got, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got[0])
	assert.Equal(t, second, got[1])

	require.NoError(t, store.Remove(ctx, "r1"))
	got, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)
}

func TestRecordStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store, path := newStore(t)
	require.NoError(t, store.Append(ctx, sampleRecord("keep", time.Unix(1, 0).UTC())))

	// #nosec G304 -- test reads from the controlled temp directory.
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = store.Remove(ctx, "missing")
	require.ErrorIs(t, err, jsonfile.ErrNotFound)

	note := "n"
	_, err = store.Replace(ctx, "missing", record.Patch{Note: &note})
	require.ErrorIs(t, err, jsonfile.ErrNotFound)

	// #nosec G304 -- test reads from the controlled temp directory.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordStoreWritesJSONKeys(t *testing.T) {
	ctx := context.Background()
	store, path := newStore(t)
	require.NoError(t, store.Append(ctx, sampleRecord("k", time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"id": "k",
		"url": "https://x.com/user/status/k",
		"title": "title k",
		"tags": ["a", "b"],
		"note": "note",
		"apiType": "embed",
		"createdAt": "2025-03-04T05:06:07Z"
	}]`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestRecordStoreAppendStoresDefaultMode(t *testing.T) {
	ctx := context.Background()
	store, path := newStore(t)
	rec := sampleRecord("d", time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	rec.APIType = ""
	require.NoError(t, store.Append(ctx, rec))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"apiType": "embed"`)
}

func TestRecordStoreCanceledContext(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
