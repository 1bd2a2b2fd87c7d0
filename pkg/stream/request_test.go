package stream

import (
	"slices"
	"testing"
)

func TestLiveMinFeaturesetExcludesSubtitleTag(t *testing.T) {
	req := NewPlaylistRequest(KindLive, "tok")
	min := req.VariantAvailability.Featureset.Min
	// Live requests with outband-webvtt in the min set are rejected with 400
	if slices.Contains(min, featureOutbandWebVTT) {
		t.Errorf("live min featureset must not contain %s: %v", featureOutbandWebVTT, min)
	}
	if !slices.Contains(min, featureMPEGDash) || !slices.Contains(min, featureWidevine) {
		t.Errorf("live min featureset incomplete: %v", min)
	}
}

func TestCatchupMinFeaturesetIncludesSubtitleTag(t *testing.T) {
	req := NewPlaylistRequest(KindCatchup, "tok")
	min := req.VariantAvailability.Featureset.Min
	// Without outband-webvtt in the min set, catchup subtitles silently vanish
	if !slices.Contains(min, featureOutbandWebVTT) {
		t.Errorf("catchup min featureset must contain %s: %v", featureOutbandWebVTT, min)
	}
}

func TestSupportsAdPods(t *testing.T) {
	if NewPlaylistRequest(KindLive, "tok").Client.SupportsAdPods {
		t.Error("live requests must not declare ad pod support")
	}
	if !NewPlaylistRequest(KindCatchup, "tok").Client.SupportsAdPods {
		t.Error("catchup requests must declare ad pod support")
	}
}

func TestTokenIsCarriedPerRequest(t *testing.T) {
	req := NewPlaylistRequest(KindCatchup, "tok-abc")
	if req.User.Token != "tok-abc" {
		t.Errorf("token not set: %q", req.User.Token)
	}
}

func TestPayloadIsFreshPerCall(t *testing.T) {
	first := NewPlaylistRequest(KindLive, "tok")
	first.VariantAvailability.Featureset.Min[0] = "mutated"
	first.User.Token = "mutated"

	second := NewPlaylistRequest(KindLive, "tok")
	if second.VariantAvailability.Featureset.Min[0] == "mutated" {
		t.Error("payloads share a featureset slice across calls")
	}
	if second.User.Token != "tok" {
		t.Error("payloads share user state across calls")
	}
}
