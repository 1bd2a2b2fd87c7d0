package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"itvhub/pkg/fetch"
	"itvhub/pkg/persistence"
)

// newAuthServer fakes the auth service: /auth exchanges credentials,
// /token refreshes or (on DELETE) invalidates.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth" && r.Method == http.MethodPost:
			if r.Header.Get("Accept") != "application/vnd.user.auth.v2+json" {
				t.Errorf("unexpected Accept header: %q", r.Header.Get("Accept"))
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad login body: %v", err)
			}
			if body["grant_type"] != "native" || body["scope"] != "content" || body["nonce"] == "" {
				t.Errorf("unexpected login body: %v", body)
			}
			switch {
			case body["username"] != "user@test.com":
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"User not found"}`))
			case body["password"] != "secret":
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Incorrect password"}`))
			default:
				w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1"}`))
			}
		case r.URL.Path == "/token" && r.Method == http.MethodGet:
			if r.URL.Query().Get("token") == "refresh-1" {
				w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2"}`))
			} else {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token expired"}`))
			}
		case r.URL.Path == "/token" && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestSession(t *testing.T, authURL string) *Session {
	t.Helper()
	persistence.ResetForTest()
	store, err := persistence.GetManager(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	s := NewSession(fetch.NewClient(5*time.Second), store)
	s.authURL = authURL
	return s
}

func TestAccessTokenWithoutSession(t *testing.T) {
	s := newTestSession(t, "http://unused.invalid")
	if _, err := s.AccessToken(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLoginStoresAndPersistsSession(t *testing.T) {
	server := newAuthServer(t)
	defer server.Close()
	s := newTestSession(t, server.URL)

	if err := s.Login("user@test.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	token, err := s.AccessToken()
	if err != nil {
		t.Fatalf("AccessToken after login failed: %v", err)
	}
	if token != "access-1" {
		t.Errorf("expected access-1, got %q", token)
	}

	// A fresh session manager over the same store must resume the session
	// without any network I/O
	restored := NewSession(fetch.NewClient(5*time.Second), s.store)
	restored.authURL = "http://unreachable.invalid"
	token, err = restored.AccessToken()
	if err != nil {
		t.Fatalf("restored session has no token: %v", err)
	}
	if token != "access-1" {
		t.Errorf("restored token mismatch: %q", token)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	server := newAuthServer(t)
	defer server.Close()

	cases := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"bad password", "user@test.com", "wrong", "password"},
		{"bad username", "nobody@test.com", "secret", "username"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(t, server.URL)
			err := s.Login(tc.username, tc.password)
			var credErr *InvalidCredentialsError
			if !errors.As(err, &credErr) {
				t.Fatalf("expected InvalidCredentialsError, got %v", err)
			}
			if credErr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, credErr.Field)
			}
			if _, err := s.AccessToken(); !errors.Is(err, ErrNotAuthenticated) {
				t.Error("failed login must not leave a session behind")
			}
		})
	}
}

func TestRefreshReplacesTokenPair(t *testing.T) {
	server := newAuthServer(t)
	defer server.Close()
	s := newTestSession(t, server.URL)

	if err := s.Login("user@test.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !s.Refresh() {
		t.Fatal("refresh returned false")
	}
	token, _ := s.AccessToken()
	if token != "access-2" {
		t.Errorf("expected refreshed token access-2, got %q", token)
	}

	// The refreshed pair must be persisted too
	restored := NewSession(fetch.NewClient(5*time.Second), s.store)
	token, err := restored.AccessToken()
	if err != nil || token != "access-2" {
		t.Errorf("refreshed session not persisted: token=%q err=%v", token, err)
	}
}

func TestRefreshWithExpiredTokenReturnsFalse(t *testing.T) {
	server := newAuthServer(t)
	defer server.Close()
	s := newTestSession(t, server.URL)

	if err := s.Login("user@test.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	s.state.RefreshToken = "refresh-expired"

	// Rejected refresh is a recoverable signal, not an error
	if s.Refresh() {
		t.Fatal("refresh with expired token returned true")
	}
}

func TestRefreshWithoutSessionReturnsFalse(t *testing.T) {
	s := newTestSession(t, "http://unused.invalid")
	if s.Refresh() {
		t.Fatal("refresh without a session returned true")
	}
}

func TestLogoutClearsLocalStateEvenWhenServerFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1"}`))
	}))
	defer server.Close()
	s := newTestSession(t, server.URL)

	if err := s.Login("any", "any"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if s.Logout() {
		t.Error("logout reported server success despite 500")
	}
	if _, err := s.AccessToken(); !errors.Is(err, ErrNotAuthenticated) {
		t.Error("local state not cleared after logout")
	}

	restored := NewSession(fetch.NewClient(5*time.Second), s.store)
	if _, err := restored.AccessToken(); !errors.Is(err, ErrNotAuthenticated) {
		t.Error("persisted state not cleared after logout")
	}
}

func TestCookiesCarryTokenEnvelope(t *testing.T) {
	server := newAuthServer(t)
	defer server.Close()
	s := newTestSession(t, server.URL)

	if s.Cookies() != nil {
		t.Error("expected no cookies before login")
	}
	if err := s.Login("user@test.com", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	cookies := s.Cookies()
	var sessionCookie, cidCookie *http.Cookie
	for _, ck := range cookies {
		switch ck.Name {
		case "Itv.Session":
			sessionCookie = ck
		case "Itv.Cid":
			cidCookie = ck
		}
	}
	if sessionCookie == nil || cidCookie == nil {
		t.Fatalf("expected Itv.Session and Itv.Cid cookies, got %v", cookies)
	}
	raw, err := url.QueryUnescape(sessionCookie.Value)
	if err != nil {
		t.Fatalf("session cookie not URL-escaped: %v", err)
	}
	if !strings.Contains(raw, `"access_token":"access-1"`) {
		t.Errorf("session cookie missing access token: %s", raw)
	}
	if cidCookie.Value == "" {
		t.Error("Itv.Cid cookie is empty")
	}
}
