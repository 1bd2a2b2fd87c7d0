// Package account owns the authentication lifecycle against the ITV user
// auth service: the access/refresh token pair, the session cookies derived
// from it, and their persistence across process restarts.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"itvhub/pkg/fetch"
	"itvhub/pkg/logger"
	"itvhub/pkg/persistence"
)

const (
	defaultAuthURL = "https://auth.prd.user.itv.com"
	authAccept     = "application/vnd.user.auth.v2+json"
	stateKey       = "itv_session"
)

// ErrNotAuthenticated is returned when an access token is requested but no
// session exists. It is recoverable: the caller should log in.
var ErrNotAuthenticated = errors.New("account: not logged in")

// InvalidCredentialsError is returned when the auth service rejects a login.
// Field names the credential the upstream blamed ("username", "password"),
// or "unknown" when it didn't say.
type InvalidCredentialsError struct {
	Field  string
	Reason string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("account: login rejected (%s): %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("account: login rejected (%s)", e.Field)
}

// Fetcher is the HTTP capability the session manager needs.
type Fetcher interface {
	GetJSON(url string, out any, headers http.Header, cookies []*http.Cookie) error
	PostJSON(url string, body any, out any, headers http.Header, cookies []*http.Cookie) error
	Delete(url string, headers http.Header, cookies []*http.Cookie) error
}

// sessionState is what gets persisted under the itv_session key.
type sessionState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CID          string    `json:"cid"`
	Refreshed    time.Time `json:"refreshed"`
}

// Session is the session manager. All operations are safe for concurrent
// use; the mutex is held across the whole check -> mutate -> persist
// sequence so no caller ever observes a half-updated token pair.
type Session struct {
	mu      sync.Mutex
	authURL string
	fetch   Fetcher
	store   *persistence.StateManager
	state   sessionState
}

// NewSession creates a session manager, restoring any persisted session.
func NewSession(fetcher Fetcher, store *persistence.StateManager) *Session {
	s := &Session{
		authURL: defaultAuthURL,
		fetch:   fetcher,
		store:   store,
	}
	if found, err := store.Get(stateKey, &s.state); err != nil {
		logger.Warn("Failed to restore session state", "err", err)
	} else if found && s.state.AccessToken != "" {
		logger.Debug("Restored persisted session", "refreshed", s.state.Refreshed)
	}
	return s
}

// AccessToken returns the current access token without network I/O.
func (s *Session) AccessToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return s.state.AccessToken, nil
}

// Cookies returns the cookies the playlist endpoints expect alongside the
// bearer token. The Itv.Session cookie wraps the token pair in the same
// envelope a web browser stores.
func (s *Session) Cookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.AccessToken == "" {
		return nil
	}
	sessionVal, err := json.Marshal(map[string]any{
		"sticky": true,
		"tokens": map[string]any{
			"content": map[string]string{
				"access_token":  s.state.AccessToken,
				"refresh_token": s.state.RefreshToken,
			},
		},
	})
	if err != nil {
		return nil
	}
	return []*http.Cookie{
		{Name: "Itv.Session", Value: url.QueryEscape(string(sessionVal))},
		{Name: "Itv.Cid", Value: s.state.CID},
	}
}

// tokenResponse matches the responses from POST /auth and GET /token
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// authError matches the auth service's error body
type authError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Login performs the credential exchange and persists the resulting session
// before returning.
func (s *Session) Login(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CID == "" {
		s.state.CID = uuid.NewString()
	}

	body := map[string]string{
		"grant_type": "native",
		"nonce":      uuid.NewString(),
		"username":   username,
		"password":   password,
		"scope":      "content",
	}
	headers := http.Header{"Accept": []string{authAccept}}

	var resp tokenResponse
	err := s.fetch.PostJSON(s.authURL+"/auth", body, &resp, headers, nil)
	if err != nil {
		if credErr := asCredentialsError(err); credErr != nil {
			return credErr
		}
		return fmt.Errorf("account: login failed: %w", err)
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("account: login response carried no access token")
	}

	s.state.AccessToken = resp.AccessToken
	s.state.RefreshToken = resp.RefreshToken
	s.state.Refreshed = time.Now().UTC()
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("account: failed to persist session: %w", err)
	}
	logger.Info("Logged in to ITV account")
	return nil
}

// Refresh exchanges the refresh token for a new token pair in place.
// It returns false, never an error, when the refresh token is rejected:
// that is the recoverable "must log in again" signal.
func (s *Session) Refresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.RefreshToken == "" {
		return false
	}

	refreshURL := fmt.Sprintf("%s/token?grant_type=refresh_token&token=%s",
		s.authURL, url.QueryEscape(s.state.RefreshToken))
	headers := http.Header{"Accept": []string{authAccept}}

	var resp tokenResponse
	if err := s.fetch.GetJSON(refreshURL, &resp, headers, s.cookiesLocked()); err != nil {
		logger.Warn("Token refresh failed", "err", err)
		return false
	}
	if resp.AccessToken == "" {
		logger.Warn("Token refresh returned no access token")
		return false
	}

	s.state.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		s.state.RefreshToken = resp.RefreshToken
	}
	s.state.Refreshed = time.Now().UTC()
	if err := s.persistLocked(); err != nil {
		// A session we cannot persist is not a session we can report as valid
		logger.Error("Failed to persist refreshed session", "err", err)
		return false
	}
	logger.Debug("Session token refreshed")
	return true
}

// Logout invalidates the server-side session on a best-effort basis and
// clears local state regardless. The return value reports whether the
// server-side call succeeded.
func (s *Session) Logout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	serverOK := true
	if s.state.RefreshToken != "" {
		logoutURL := fmt.Sprintf("%s/token?token=%s", s.authURL, url.QueryEscape(s.state.RefreshToken))
		headers := http.Header{
			"Accept":        []string{authAccept},
			"Authorization": []string{"Bearer " + s.state.AccessToken},
		}
		if err := s.fetch.Delete(logoutURL, headers, nil); err != nil {
			logger.Warn("Server-side logout failed", "err", err)
			serverOK = false
		}
	}

	s.state = sessionState{}
	if err := s.store.Delete(stateKey); err != nil {
		logger.Warn("Failed to clear persisted session", "err", err)
	}
	logger.Info("Logged out of ITV account")
	return serverOK
}

func (s *Session) persistLocked() error {
	return s.store.Set(stateKey, s.state)
}

// cookiesLocked is Cookies for callers already holding the mutex.
func (s *Session) cookiesLocked() []*http.Cookie {
	if s.state.CID == "" {
		return nil
	}
	return []*http.Cookie{{Name: "Itv.Cid", Value: s.state.CID}}
}

// asCredentialsError maps a 4xx auth response to an InvalidCredentialsError,
// attributing the field when the upstream's error_description names it.
func asCredentialsError(err error) *InvalidCredentialsError {
	var he *fetch.HTTPError
	if !errors.As(err, &he) {
		return nil
	}
	if he.StatusCode != http.StatusBadRequest &&
		he.StatusCode != http.StatusUnauthorized &&
		he.StatusCode != http.StatusForbidden {
		return nil
	}

	var body authError
	_ = json.Unmarshal(he.Body, &body)

	field := "unknown"
	desc := strings.ToLower(body.Description)
	switch {
	case strings.Contains(desc, "password"):
		field = "password"
	case strings.Contains(desc, "user"), strings.Contains(desc, "email"):
		field = "username"
	}
	return &InvalidCredentialsError{Field: field, Reason: body.Description}
}
