package fetch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The upstream hangs without a browser identity; the client must
		// always send one
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		if r.Header.Get("Origin") != "https://www.itv.com" {
			t.Errorf("unexpected Origin: %q", r.Header.Get("Origin"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("unexpected Accept: %q", r.Header.Get("Accept"))
		}
		if ck, err := r.Cookie("Itv.Cid"); err != nil || ck.Value != "cid-1" {
			t.Error("cookie Itv.Cid not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer": 42}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	var out struct {
		Answer int `json:"answer"`
	}
	headers := http.Header{"Accept": []string{"application/json"}}
	cookies := []*http.Cookie{{Name: "Itv.Cid", Value: "cid-1"}}
	if err := client.GetJSON(server.URL, &out, headers, cookies); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Answer != 42 {
		t.Errorf("expected 42, got %d", out.Answer)
	}
}

func TestGetJSONNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	var out struct {
		Results []string `json:"results"`
	}
	if err := client.GetJSON(server.URL, &out, nil, nil); err != nil {
		t.Fatalf("GetJSON on 204 failed: %v", err)
	}
	if out.Results != nil {
		t.Errorf("expected untouched output, got %v", out.Results)
	}
}

func TestHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Incorrect password"}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	var out map[string]any
	err := client.GetJSON(server.URL, &out, nil, nil)
	if err == nil {
		t.Fatal("expected error on 403")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.StatusCode)
	}
	var body struct {
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(httpErr.Body, &body); err != nil || body.Description != "Incorrect password" {
		t.Errorf("error body not preserved: %s", httpErr.Body)
	}
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected Content-Type: %q", r.Header.Get("Content-Type"))
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte(`{"echo":"` + in["hello"] + `"}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	var out struct {
		Echo string `json:"echo"`
	}
	err := client.PostJSON(server.URL, map[string]string{"hello": "world"}, &out, nil, nil)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if out.Echo != "world" {
		t.Errorf("expected world, got %q", out.Echo)
	}
}

func TestGetDocument(t *testing.T) {
	const vtt = "WEBVTT\n\n00:00.000 --> 00:02.000\nHello"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/vtt")
		w.Write([]byte(vtt))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	doc, err := client.GetDocument(server.URL)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc != vtt {
		t.Errorf("document mismatch: %q", doc)
	}
}
