// Package post defines the normalized shape every upstream post source is
// converted into before it is rendered as a card.
package post

import "time"

// MediaType classifies a media attachment.
type MediaType string

// Supported media types.
const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

// Author identifies who published a post.
type Author struct {
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Media is one attachment. URL points at the playable or viewable asset and
// PreviewURL at a still image when one exists.
type Media struct {
	Type       MediaType `json:"type"`
	URL        string    `json:"url"`
	PreviewURL string    `json:"previewUrl,omitempty"`
}

// Post is the normalized post returned by the scraper and API clients.
type Post struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	Author    Author    `json:"author"`
	Media     []Media   `json:"media"`
}

// Lead returns the attachment a card should feature: the first video or gif
// when there is one, else the first photo.
func (p Post) Lead() (Media, bool) {
	for _, m := range p.Media {
		if m.Type == MediaVideo || m.Type == MediaGIF {
			return m, true
		}
	}
	for _, m := range p.Media {
		if m.Type == MediaPhoto {
			return m, true
		}
	}
	return Media{}, false
}
