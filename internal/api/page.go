package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/record"
	"github.com/JakeFAU/postshelf/internal/render"
)

const defaultWidgetsURL = "https://platform.twitter.com/widgets.js"

//go:embed templates/index.html.tmpl
var pageFS embed.FS

var indexTemplate = template.Must(template.ParseFS(pageFS, "templates/index.html.tmpl"))

type pageRow struct {
	Record record.Record
	State  render.State
	HTML   template.HTML
}

type pageData struct {
	Rows       []pageRow
	Search     string
	Tag        string
	Modes      []record.APIType
	WidgetsURL string
}

// index handles GET /. Every listed record is rendered server side on the
// shared board; embed markup is hydrated by the widgets script in the browser.
// A concurrent page load replaces the board, leaving canceled rows on their
// loading markup.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Records.List(r.Context())
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		http.Error(w, "failed to list records", http.StatusInternalServerError)
		return
	}
	query := queryFrom(r)
	records = query.Apply(records)

	rows := make([]pageRow, len(records))
	for i, rec := range records {
		rows[i] = pageRow{Record: rec, State: render.StatePending, HTML: render.Loading()}
	}
	if s.deps.Renderer != nil && len(records) > 0 {
		board, results, err := s.deps.Renderer.RenderAll(r.Context(), targetsFor(records))
		if err != nil {
			s.logger.Warn("render all interrupted", zap.Error(err))
		}
		for i, res := range results {
			rows[i].State = res.State
			if html, ok := board.HTML(res.RecordID); ok && html != "" {
				rows[i].HTML = html
			}
		}
	}

	data := pageData{
		Rows:       rows,
		Search:     query.Search,
		Tag:        query.Tag,
		Modes:      []record.APIType{record.APITypeEmbed, record.APITypeAuto, record.APITypeTwitterAPI, record.APITypeTwscrape},
		WidgetsURL: s.opts.WidgetsURL,
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render index failed", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("write index failed", zap.Error(err))
	}
}
