package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/posturl"
	"github.com/JakeFAU/postshelf/internal/twitterapi"
	"github.com/JakeFAU/postshelf/internal/videolookup"
)

type urlRequest struct {
	URL string `json:"url"`
}

type configRequest struct {
	TwitterAPIKey *string `json:"twitterApiKey"`
}

type apiKeyRequest struct {
	APIKey *string `json:"apiKey"`
}

type configResponse struct {
	HasTwitterAPIKey bool `json:"hasTwitterApiKey"`
}

func (s *Server) postURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req urlRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return "", false
	}
	if !posturl.IsValid(url) {
		writeError(w, http.StatusBadRequest, "invalid X (Twitter) post URL")
		return "", false
	}
	return url, true
}

// downloadVideo handles POST /api/download/video.
func (s *Server) downloadVideo(w http.ResponseWriter, r *http.Request) {
	if s.deps.Videos == nil {
		writeError(w, http.StatusServiceUnavailable, "video lookup unavailable")
		return
	}
	url, ok := s.postURL(w, r)
	if !ok {
		return
	}
	videos, err := s.deps.Videos.Lookup(r.Context(), url)
	switch {
	case err == nil:
		writeData(w, http.StatusOK, map[string]any{"videos": videos})
	case errors.Is(err, videolookup.ErrNoVideo), errors.Is(err, videolookup.ErrNotFound):
		writeError(w, http.StatusNotFound, "no video found for this post")
	case errors.Is(err, videolookup.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "invalid X (Twitter) post URL")
	default:
		s.logger.Warn("video lookup failed", zap.String("url", url), zap.Error(err))
		writeError(w, upstreamStatus(err), "video lookup failed: "+err.Error())
	}
}

// lookupTweet handles POST /api/twitterapi/tweet.
func (s *Server) lookupTweet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Posts == nil || s.deps.Settings == nil {
		writeError(w, http.StatusServiceUnavailable, "TwitterAPI.io client unavailable")
		return
	}
	url, ok := s.postURL(w, r)
	if !ok {
		return
	}
	key := s.deps.Settings.TwitterAPIKey(r.Context())
	if key == "" {
		writeError(w, http.StatusBadRequest, "TwitterAPI.io API key is not configured")
		return
	}
	p, err := s.deps.Posts.Lookup(r.Context(), key, url)
	switch {
	case err == nil:
		writeData(w, http.StatusOK, p)
	case errors.Is(err, twitterapi.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, "TwitterAPI.io API key is not configured")
	case errors.Is(err, twitterapi.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "invalid X (Twitter) post URL")
	case errors.Is(err, twitterapi.ErrNotFound):
		writeError(w, http.StatusNotFound, "post not found")
	default:
		s.logger.Warn("twitterapi lookup failed", zap.String("url", url), zap.Error(err))
		writeError(w, upstreamStatus(err), "TwitterAPI.io request failed: "+err.Error())
	}
}

// getConfig handles GET /api/config. The key itself is never returned.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusServiceUnavailable, "settings unavailable")
		return
	}
	writeData(w, http.StatusOK, configResponse{
		HasTwitterAPIKey: s.deps.Settings.TwitterAPIKey(r.Context()) != "",
	})
}

// setConfig handles POST /api/config.
func (s *Server) setConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.saveAPIKey(w, r, req.TwitterAPIKey)
}

// setTwitterAPIKey handles POST /api/config/twitterapi.
func (s *Server) setTwitterAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.saveAPIKey(w, r, req.APIKey)
}

func (s *Server) saveAPIKey(w http.ResponseWriter, r *http.Request, key *string) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusServiceUnavailable, "settings unavailable")
		return
	}
	if key == nil {
		writeError(w, http.StatusBadRequest, "api key field is required")
		return
	}
	if err := s.deps.Settings.SetTwitterAPIKey(r.Context(), *key); err != nil {
		s.logger.Error("save settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeData(w, http.StatusOK, configResponse{HasTwitterAPIKey: strings.TrimSpace(*key) != ""})
}

func upstreamStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
