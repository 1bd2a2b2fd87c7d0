// Package stream negotiates playable stream URLs with the ITV playlist
// services and normalizes their two response shapes (live "sim" playlists
// and catchup "vod" playlists) into one result.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"itvhub/pkg/fetch"
	"itvhub/pkg/logger"
)

const (
	defaultSimulcastURL = "https://simulcast.itv.com/playlist/itvonline/"

	// The StartAgainUrl template's placeholder for the UTC start timestamp
	startTimePlaceholder = "{START_TIME}"
	startTimeFormat      = "2006-01-02T15:04:05"

	// How far behind the live edge a plain live tune-in starts, so the
	// stream lands inside the timeshift buffer instead of ahead of it.
	liveEdgeMargin = 20 * time.Second
)

// ErrAuthenticationFailed is returned when the playlist service rejected the
// token and a refresh either failed or was already spent on this request.
var ErrAuthenticationFailed = errors.New("stream: authentication failed")

// MalformedResponseError reports a 200 playlist response missing an
// expected field.
type MalformedResponseError struct {
	URL   string
	Field string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("stream: malformed playlist response from %s: missing %s", e.URL, e.Field)
}

// AccessRestrictedError reports content the session has no entitlement for
// (premium tier). The upstream signals this with a paywall marker in an
// otherwise well-formed body, not with a transport error.
type AccessRestrictedError struct {
	URL     string
	Message string
}

func (e *AccessRestrictedError) Error() string {
	return fmt.Sprintf("stream: access restricted for %s: %s", e.URL, e.Message)
}

// Session is the credential capability the resolver depends on.
type Session interface {
	AccessToken() (string, error)
	Refresh() bool
	Cookies() []*http.Cookie
}

// Fetcher is the HTTP capability the resolver depends on.
type Fetcher interface {
	PostJSON(url string, body any, out any, headers http.Header, cookies []*http.Cookie) error
	GetDocument(url string) (string, error)
}

// ResolvedStream is the uniform result of one resolution: where the player
// finds the manifest, where it fetches decryption keys, and where subtitles
// live. SubtitleURL is empty when the stream has none.
type ResolvedStream struct {
	ManifestURL   string
	KeyServiceURL string
	SubtitleURL   string
}

// Resolver orchestrates playlist requests against the ITV playlist services.
type Resolver struct {
	session      Session
	fetch        Fetcher
	simulcastURL string
	now          func() time.Time
}

// NewResolver creates a resolver bound to a session and fetch capability.
func NewResolver(session Session, fetcher Fetcher) *Resolver {
	return &Resolver{
		session:      session,
		fetch:        fetcher,
		simulcastURL: defaultSimulcastURL,
		now:          time.Now,
	}
}

// playlistEnvelope is the part of every playlist response that is shape
// independent. Error responses embed their own status code in the body;
// the transport status is usually still 200.
type playlistEnvelope struct {
	StatusCode int             `json:"StatusCode"`
	Message    string          `json:"Message"`
	Playlist   json.RawMessage `json:"Playlist"`
}

// requestPlaylist runs the attempt loop for one playlist request: attempt,
// refresh on 401, attempt once more, give up. The second attempt never
// triggers another refresh.
func (r *Resolver) requestPlaylist(url string, kind Kind) (json.RawMessage, error) {
	accept := acceptSimV3
	if kind != KindLive {
		accept = acceptVodV2
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := r.session.AccessToken()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}

		payload := NewPlaylistRequest(kind, token)
		headers := http.Header{"Accept": []string{accept}}

		var envelope playlistEnvelope
		err = r.fetch.PostJSON(url, payload, &envelope, headers, r.session.Cookies())
		if err != nil {
			var he *fetch.HTTPError
			if errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized {
				envelope.StatusCode = http.StatusUnauthorized
			} else {
				// Transport failures and other HTTP errors propagate untouched
				return nil, err
			}
		}

		if envelope.StatusCode == http.StatusUnauthorized {
			if attempt == 0 && r.session.Refresh() {
				logger.Debug("Playlist request unauthorized, retrying with refreshed token", "url", url)
				continue
			}
			return nil, fmt.Errorf("playlist request for %s: %w", url, ErrAuthenticationFailed)
		}
		if envelope.StatusCode == http.StatusForbidden ||
			strings.Contains(strings.ToLower(envelope.Message), "entitle") {
			return nil, &AccessRestrictedError{URL: url, Message: envelope.Message}
		}
		if len(envelope.Playlist) == 0 || string(envelope.Playlist) == "null" {
			return nil, &MalformedResponseError{URL: url, Field: "Playlist"}
		}
		return envelope.Playlist, nil
	}

	return nil, fmt.Errorf("playlist request for %s: %w", url, ErrAuthenticationFailed)
}

// simPlaylist is the live ("sim") playlist shape. Url is absolute here,
// unlike the vod shape's relative Href.
type simPlaylist struct {
	Video struct {
		VideoLocations []struct {
			URL           string `json:"Url"`
			KeyServiceURL string `json:"KeyServiceUrl"`
			StartAgainURL string `json:"StartAgainUrl"`
		} `json:"VideoLocations"`
	} `json:"Video"`
}

// vodPlaylist is the catchup ("vod") playlist shape.
type vodPlaylist struct {
	Video struct {
		Base       string `json:"Base"`
		MediaFiles []struct {
			Href          string `json:"Href"`
			KeyServiceURL string `json:"KeyServiceUrl"`
		} `json:"MediaFiles"`
		// Null, absent and [] are all normal "no subtitles" states
		Subtitles []struct {
			Href string `json:"Href"`
		} `json:"Subtitles"`
	} `json:"Video"`
}

// LiveOptions carries the optional knobs of a live resolution.
type LiveOptions struct {
	// URL overrides the playlist endpoint; defaults to the simulcast
	// endpoint for the channel.
	URL string
	// Title is shown by the host's play-from-start prompt.
	Title string
	// StartTime is the programme start used for play-from-start.
	StartTime time.Time
	// PlayFromStart requests play-from-start without prompting.
	PlayFromStart bool
	// Confirm is the host-owned prompt capability. Only consulted when a
	// StartAgainUrl is on offer, PlayFromStart is false and StartTime is set.
	Confirm func(title string) bool
}

// ResolveLive resolves the manifest and key-service URLs for a live channel.
// Live streams never carry subtitles, so SubtitleURL is always empty.
func (r *Resolver) ResolveLive(channel string, opts LiveOptions) (*ResolvedStream, error) {
	url := opts.URL
	if url == "" {
		url = r.simulcastURL + channel
	}

	raw, err := r.requestPlaylist(url, KindLive)
	if err != nil {
		return nil, err
	}

	var playlist simPlaylist
	if err := json.Unmarshal(raw, &playlist); err != nil {
		return nil, &MalformedResponseError{URL: url, Field: "Playlist.Video"}
	}
	if len(playlist.Video.VideoLocations) == 0 {
		return nil, &MalformedResponseError{URL: url, Field: "Playlist.Video.VideoLocations"}
	}

	location := playlist.Video.VideoLocations[0]
	manifest := location.URL

	if location.StartAgainURL != "" {
		if !opts.StartTime.IsZero() && (opts.PlayFromStart || (opts.Confirm != nil && opts.Confirm(opts.Title))) {
			manifest = substituteStartTime(location.StartAgainURL, opts.StartTime)
			logger.Debug("Selected play from start", "channel", channel, "start", opts.StartTime)
		} else {
			manifest = substituteStartTime(location.StartAgainURL, r.now().Add(-liveEdgeMargin))
		}
	}

	return &ResolvedStream{
		ManifestURL:   manifest,
		KeyServiceURL: location.KeyServiceURL,
	}, nil
}

// ResolveCatchup resolves the manifest, key-service and subtitle URLs for a
// catchup episode given its per-episode playlist endpoint.
func (r *Resolver) ResolveCatchup(episodeURL string) (*ResolvedStream, error) {
	raw, err := r.requestPlaylist(episodeURL, KindCatchup)
	if err != nil {
		return nil, err
	}

	var playlist vodPlaylist
	if err := json.Unmarshal(raw, &playlist); err != nil {
		return nil, &MalformedResponseError{URL: episodeURL, Field: "Playlist.Video"}
	}
	video := playlist.Video
	if len(video.MediaFiles) == 0 {
		return nil, &MalformedResponseError{URL: episodeURL, Field: "Playlist.Video.MediaFiles"}
	}

	resolved := &ResolvedStream{
		// Href is relative in the vod shape; Base carries the prefix
		ManifestURL:   video.Base + video.MediaFiles[0].Href,
		KeyServiceURL: video.MediaFiles[0].KeyServiceURL,
	}
	if len(video.Subtitles) > 0 {
		resolved.SubtitleURL = video.Subtitles[0].Href
	}
	return resolved, nil
}

// SubtitleDocument fetches the raw WebVTT document for a resolved stream.
// An empty subtitle URL yields an empty document, matching the "stream has
// no subtitles" result.
func (r *Resolver) SubtitleDocument(subtitleURL string) (string, error) {
	if subtitleURL == "" {
		return "", nil
	}
	return r.fetch.GetDocument(subtitleURL)
}

func substituteStartTime(template string, t time.Time) string {
	return strings.ReplaceAll(template, startTimePlaceholder, t.UTC().Format(startTimeFormat))
}
