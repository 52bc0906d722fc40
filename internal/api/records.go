package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/metrics"
	"github.com/JakeFAU/postshelf/internal/posturl"
	"github.com/JakeFAU/postshelf/internal/record"
)

// tagList accepts either a comma separated string or an array of values. Any
// other JSON value clears the tags. set records whether the field was present
// at all.
type tagList struct {
	set    bool
	values []string
}

func (t *tagList) UnmarshalJSON(data []byte) error {
	t.set = true
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	switch v := raw.(type) {
	case nil:
		t.values = []string{}
	case string:
		t.values = record.ParseTags(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(item))
		}
		t.values = record.CleanTags(parts)
	default:
		t.values = []string{}
	}
	return nil
}

type createRecordRequest struct {
	URL     string  `json:"url"`
	Tags    tagList `json:"tags"`
	Note    string  `json:"note"`
	APIType string  `json:"apiType"`
}

type updateRecordRequest struct {
	Title   *string `json:"title"`
	Tags    tagList `json:"tags"`
	Note    *string `json:"note"`
	APIType *string `json:"apiType"`
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Records.List(r.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	writeData(w, http.StatusOK, queryFrom(r).Apply(records))
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !posturl.IsValid(url) {
		writeError(w, http.StatusBadRequest, "invalid X (Twitter) post URL")
		return
	}
	apiType, err := record.ParseAPIType(req.APIType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.deps.IDs.NewID()
	if err != nil {
		s.logger.Error("generate record id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create record")
		return
	}
	tags := req.Tags.values
	if tags == nil {
		tags = []string{}
	}
	rec := record.Record{
		ID:        id,
		URL:       url,
		Title:     s.deps.Titles.FetchTitle(r.Context(), url),
		Tags:      tags,
		Note:      strings.TrimSpace(req.Note),
		APIType:   apiType,
		CreatedAt: s.deps.Clock.Now().UTC(),
	}
	if err := s.deps.Records.Append(r.Context(), rec); err != nil {
		s.logger.Error("append record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create record")
		return
	}
	metrics.ObserveRecordMutation("create")
	s.logger.Info("record created", zap.String("record_id", rec.ID), zap.String("api_type", string(rec.APIType)))
	writeData(w, http.StatusOK, rec)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRecordRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch := record.Patch{Title: req.Title, Note: req.Note}
	if req.Tags.set {
		tags := req.Tags.values
		patch.Tags = &tags
	}
	if req.APIType != nil {
		apiType, err := record.ParseAPIType(*req.APIType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.APIType = &apiType
	}

	if patch.Empty() {
		s.currentRecord(w, r, id)
		return
	}

	updated, err := s.deps.Records.Replace(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("update record failed", zap.String("record_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	metrics.ObserveRecordMutation("update")
	writeData(w, http.StatusOK, updated)
}

// currentRecord answers an update that changes nothing without rewriting the
// store.
func (s *Server) currentRecord(w http.ResponseWriter, r *http.Request, id string) {
	records, err := s.deps.Records.List(r.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	rec, ok := findRecord(records, id)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Records.Remove(r.Context(), id); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("delete record failed", zap.String("record_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	if s.deps.Renderer != nil {
		s.deps.Renderer.Forget(id)
	}
	if s.deps.Statuses != nil {
		s.deps.Statuses.Forget(id)
	}
	metrics.ObserveRecordMutation("delete")
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func queryFrom(r *http.Request) record.Query {
	q := r.URL.Query()
	return record.Query{Tag: q.Get("tag"), Search: q.Get("search")}
}
