package stream

// Kind selects which playlist endpoint flavour a request is built for.
type Kind string

const (
	KindLive    Kind = "live"
	KindCatchup Kind = "catchup"
)

// Capability tags used in featureset negotiation
const (
	featureMPEGDash      = "mpeg-dash"
	featureWidevine      = "widevine"
	featureOutbandWebVTT = "outband-webvtt"
)

// Accept media types; the playlist services are strict about these
const (
	acceptSimV3 = "application/vnd.itv.online.playlist.sim.v3+json"
	acceptVodV2 = "application/vnd.itv.vod.playlist.v2+json"
)

// PlaylistRequest is the capability-negotiation payload POSTed to the
// playlist endpoints.
type PlaylistRequest struct {
	Client              ClientInfo          `json:"client"`
	Device              DeviceInfo          `json:"device"`
	User                UserInfo            `json:"user"`
	VariantAvailability VariantAvailability `json:"variantAvailability"`
}

type ClientInfo struct {
	ID             string `json:"id"`
	SupportsAdPods bool   `json:"supportsAdPods"`
	Version        string `json:"version"`
}

type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	OS           OSInfo `json:"os"`
}

type OSInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Version string `json:"version"`
}

type UserInfo struct {
	Entitlements []string `json:"entitlements"`
	ITVUserID    string   `json:"itvUserId"`
	Token        string   `json:"token"`
}

type VariantAvailability struct {
	Featureset  Featureset `json:"featureset"`
	PlatformTag string     `json:"platformTag"`
}

type Featureset struct {
	Min []string `json:"min"`
	Max []string `json:"max"`
}

// NewPlaylistRequest builds the payload for one playlist request. It is pure
// and returns a fresh value every call, so concurrent resolutions can never
// observe each other's half-built payloads.
//
// The min featureset is the upstream's sore point: live requests are
// rejected with 400 when it contains outband-webvtt, while catchup requests
// silently lose subtitles when it does not.
func NewPlaylistRequest(kind Kind, token string) PlaylistRequest {
	minFeatures := []string{featureMPEGDash, featureWidevine}
	if kind != KindLive {
		minFeatures = append(minFeatures, featureOutbandWebVTT)
	}

	return PlaylistRequest{
		Client: ClientInfo{
			ID: "browser",
			// Ad pods are only supported on catchup streams
			SupportsAdPods: kind != KindLive,
			Version:        "4.1",
		},
		Device: DeviceInfo{
			Manufacturer: "Firefox",
			Model:        "105",
			OS: OSInfo{
				Name:    "Linux",
				Type:    "desktop",
				Version: "x86_64",
			},
		},
		User: UserInfo{
			Entitlements: []string{},
			Token:        token,
		},
		VariantAvailability: VariantAvailability{
			Featureset: Featureset{
				Min: minFeatures,
				Max: []string{featureMPEGDash, featureWidevine, featureOutbandWebVTT},
			},
			PlatformTag: "dotcom",
		},
	}
}
