package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/scraper"
)

type deleteAccountRequest struct {
	Username string `json:"username"`
}

func writeScraper(w http.ResponseWriter, status int, installed bool, data any, msg string) {
	writeJSON(w, status, envelope{
		Success:   msg == "",
		Data:      data,
		Error:     msg,
		Installed: &installed,
	})
}

// requireScraper writes the not-installed reply and reports false when the
// CLI is missing.
func (s *Server) requireScraper(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Accounts == nil || !s.deps.Accounts.Installed(r.Context()) {
		writeScraper(w, http.StatusServiceUnavailable, false, nil, "twscrape is not installed")
		return false
	}
	return true
}

func (s *Server) scraperFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, scraper.ErrNotInstalled):
		writeScraper(w, http.StatusServiceUnavailable, false, nil, "twscrape is not installed")
	case errors.Is(err, scraper.ErrInvalidAccount):
		writeScraper(w, http.StatusBadRequest, true, nil, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeScraper(w, http.StatusGatewayTimeout, true, nil, "twscrape "+op+" timed out")
	default:
		s.logger.Error("twscrape command failed", zap.String("op", op), zap.Error(err))
		writeScraper(w, http.StatusInternalServerError, true, nil, "twscrape "+op+" failed: "+err.Error())
	}
}

// listAccounts handles GET /api/twscrape/accounts.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireScraper(w, r) {
		return
	}
	accounts, err := s.deps.Accounts.ListAccounts(r.Context())
	if err != nil {
		s.scraperFailure(w, "accounts", err)
		return
	}
	writeScraper(w, http.StatusOK, true, accounts, "")
}

// addAccount handles POST /api/twscrape/accounts.
func (s *Server) addAccount(w http.ResponseWriter, r *http.Request) {
	var creds scraper.Credentials
	if err := decodeJSON(w, r, &creds, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.requireScraper(w, r) {
		return
	}
	if err := s.deps.Accounts.AddAccount(r.Context(), creds); err != nil {
		s.scraperFailure(w, "add_accounts", err)
		return
	}
	s.logger.Info("twscrape account added", zap.String("username", strings.TrimSpace(creds.Username)))
	writeScraper(w, http.StatusOK, true, map[string]string{"username": strings.TrimSpace(creds.Username)}, "")
}

// deleteAccount handles DELETE /api/twscrape/accounts with the username in
// the body or the query string.
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		var req deleteAccountRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		username = strings.TrimSpace(req.Username)
	}
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !s.requireScraper(w, r) {
		return
	}
	if err := s.deps.Accounts.DeleteAccount(r.Context(), username); err != nil {
		s.scraperFailure(w, "del_accounts", err)
		return
	}
	writeScraper(w, http.StatusOK, true, map[string]string{"username": username}, "")
}

// loginAccounts handles POST /api/twscrape/login.
func (s *Server) loginAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireScraper(w, r) {
		return
	}
	res, err := s.deps.Accounts.LoginAccounts(r.Context())
	if err != nil {
		s.scraperFailure(w, "login_accounts", err)
		return
	}
	writeScraper(w, http.StatusOK, true, res, "")
}
