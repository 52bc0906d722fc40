package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/JakeFAU/postshelf/internal/post"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("render").ParseFS(templateFS, "templates/*.tmpl"))

// Placeholder messages.
const (
	MessageInvalidURL    = "Invalid post URL"
	MessageNotEmbeddable = "This post cannot be embedded. It may be deleted, private, age restricted or region locked."
	MessageLoadFailed    = "Load failed"
	MessageTimedOut      = "Timed out loading post"
	MessageNoStrategy    = "No rendering strategy is configured for this post"
)

// FallbackFailedMessage names the source a fallback failed against.
func FallbackFailedMessage(label string) string {
	return fmt.Sprintf("Could not load post via %s", label)
}

type placeholderData struct {
	State   State
	Message string
	Detail  string
	URL     string
}

type cardData struct {
	Post post.Post
	Lead *post.Media
	URL  string
}

// Placeholder renders a failure notice that links to the original post.
func Placeholder(state State, message, detail, postURL string) template.HTML {
	html, err := execute("placeholder", placeholderData{
		State:   state,
		Message: message,
		Detail:  detail,
		URL:     postURL,
	})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(message)) // #nosec G203 -- escaped above.
	}
	return html
}

// Loading renders the markup shown while an attempt is in flight.
func Loading() template.HTML {
	html, err := execute("loading", nil)
	if err != nil {
		return ""
	}
	return html
}

// Card renders a normalized post. postURL is the link the card points back
// to; it defaults to the post's own URL.
func Card(p post.Post, postURL string) (template.HTML, error) {
	if postURL == "" {
		postURL = p.URL
	}
	data := cardData{Post: p, URL: postURL}
	if lead, ok := p.Lead(); ok {
		data.Lead = &lead
	}
	return execute("card", data)
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	// #nosec G203 -- produced by html/template, which escapes its inputs.
	return template.HTML(buf.String()), nil
}
