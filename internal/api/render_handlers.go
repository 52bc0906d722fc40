package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/record"
	"github.com/JakeFAU/postshelf/internal/render"
)

const (
	defaultStatusLimit = 50
	maxStatusLimit     = 500
)

// renderRecord handles GET /api/records/{id}/render. It renders one record on
// a board of its own and returns the terminal result.
func (s *Server) renderRecord(w http.ResponseWriter, r *http.Request) {
	if s.deps.Renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "renderer unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	records, err := s.deps.Records.List(r.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	rec, ok := findRecord(records, id)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	board := render.NewBoard([]string{rec.ID})
	defer board.Teardown()
	res := s.deps.Renderer.Render(r.Context(), board, render.TargetFor(rec))
	if res.State == render.StateCanceled {
		writeError(w, http.StatusServiceUnavailable, "render canceled")
		return
	}
	writeData(w, http.StatusOK, res)
}

// renderAll handles POST /api/render?tag=&search=. It rebuilds the shared
// board for the filtered list and returns every result in list order.
func (s *Server) renderAll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "renderer unavailable")
		return
	}
	records, err := s.deps.Records.List(r.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	records = queryFrom(r).Apply(records)
	_, results, err := s.deps.Renderer.RenderAll(r.Context(), targetsFor(records))
	if err != nil {
		s.logger.Warn("render all interrupted", zap.Error(err))
	}
	writeData(w, http.StatusOK, map[string]any{"results": results})
}

// listRenderStatus handles GET /api/render/status?state=&limit=&offset=. It
// returns the latest outcome per record, newest first.
func (s *Server) listRenderStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Statuses == nil {
		writeError(w, http.StatusServiceUnavailable, "render status unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultStatusLimit, maxStatusLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := parseState(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, http.StatusOK, s.deps.Statuses.List(string(state), limit, offset))
}

func findRecord(records []record.Record, id string) (record.Record, bool) {
	for _, rec := range records {
		if rec.ID == id {
			return rec, true
		}
	}
	return record.Record{}, false
}

func targetsFor(records []record.Record) []render.Target {
	targets := make([]render.Target, 0, len(records))
	for _, rec := range records {
		targets = append(targets, render.TargetFor(rec))
	}
	return targets
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseState(input string) (render.State, error) {
	switch state := render.State(strings.ToLower(strings.TrimSpace(input))); state {
	case "":
		return "", nil
	case render.StateSucceeded, render.StateFailedEmbeddable, render.StateFailedNetwork,
		render.StateTimedOut, render.StateInvalidURL, render.StateCanceled:
		return state, nil
	default:
		return "", errors.New("invalid state")
	}
}
