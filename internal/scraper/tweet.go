package scraper

import (
	"strconv"
	"time"

	"github.com/JakeFAU/postshelf/internal/post"
)

type scrapedTweet struct {
	ID         int64  `json:"id"`
	IDStr      string `json:"id_str"`
	URL        string `json:"url"`
	Date       string `json:"date"`
	RawContent string `json:"rawContent"`
	User       struct {
		Username        string `json:"username"`
		DisplayName     string `json:"displayname"`
		ProfileImageURL string `json:"profileImageUrl"`
	} `json:"user"`
	Media struct {
		Photos []struct {
			URL string `json:"url"`
		} `json:"photos"`
		Videos []struct {
			ThumbnailURL string `json:"thumbnailUrl"`
			Variants     []struct {
				ContentType string `json:"contentType"`
				Bitrate     int    `json:"bitrate"`
				URL         string `json:"url"`
			} `json:"variants"`
		} `json:"videos"`
		Animated []struct {
			ThumbnailURL string `json:"thumbnailUrl"`
			VideoURL     string `json:"videoUrl"`
		} `json:"animated"`
	} `json:"media"`
}

func (t scrapedTweet) normalize() post.Post {
	out := post.Post{
		ID:   t.IDStr,
		URL:  t.URL,
		Text: t.RawContent,
		Author: post.Author{
			Handle:    t.User.Username,
			Name:      t.User.DisplayName,
			AvatarURL: t.User.ProfileImageURL,
		},
		Media: []post.Media{},
	}
	if out.ID == "" && t.ID != 0 {
		out.ID = strconv.FormatInt(t.ID, 10)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05-07:00"} {
		if ts, err := time.Parse(layout, t.Date); err == nil {
			out.CreatedAt = ts.UTC()
			break
		}
	}
	for _, v := range t.Media.Videos {
		best, bestRate := "", -1
		for _, variant := range v.Variants {
			if variant.ContentType == "video/mp4" && variant.Bitrate > bestRate {
				best, bestRate = variant.URL, variant.Bitrate
			}
		}
		if best != "" {
			out.Media = append(out.Media, post.Media{Type: post.MediaVideo, URL: best, PreviewURL: v.ThumbnailURL})
		}
	}
	for _, a := range t.Media.Animated {
		if a.VideoURL != "" {
			out.Media = append(out.Media, post.Media{Type: post.MediaGIF, URL: a.VideoURL, PreviewURL: a.ThumbnailURL})
		}
	}
	for _, p := range t.Media.Photos {
		if p.URL != "" {
			out.Media = append(out.Media, post.Media{Type: post.MediaPhoto, URL: p.URL, PreviewURL: p.URL})
		}
	}
	return out
}
