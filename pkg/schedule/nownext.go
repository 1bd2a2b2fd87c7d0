package schedule

import (
	"net/http"

	"itvhub/pkg/logger"
)

const defaultNowNextURL = "https://nownext.oasvc.itv.com/channels?broadcaster=itv" +
	"&featureSet=mpeg-dash,widevine,outband-webvtt&platformTag=dotcom"

// NowNextSlot is the programme currently on air, or the one after it.
type NowNextSlot struct {
	Title        string
	ProductionID string
	Start        string
	End          string
}

// ChannelNowNext is the now/next pair for one channel, including the fast
// channels that never appear in the main schedule.
type ChannelNowNext struct {
	ID        string
	Name      string
	StreamURL string
	Now       NowNextSlot
	Next      NowNextSlot
}

// NowNext fetches the current and next programme for every channel.
func (f *Fetcher) NowNext() ([]ChannelNowNext, error) {
	var resp nowNextResponse
	if err := f.fetch.GetJSON(f.nowNextURL, &resp, http.Header{}, nil); err != nil {
		return nil, err
	}

	channels := make([]ChannelNowNext, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		channels = append(channels, ChannelNowNext{
			ID:        ch.ID,
			Name:      ch.Name,
			StreamURL: ch.StreamURL,
			Now:       newNowNextSlot(ch.Slots.Now),
			Next:      newNowNextSlot(ch.Slots.Next),
		})
	}

	logger.Debug("Fetched now/next", "channels", len(channels))
	return channels, nil
}

func newNowNextSlot(s nowNextSlotJSON) NowNextSlot {
	title := s.DisplayTitle
	if title == "" {
		title = s.Title
	}
	return NowNextSlot{
		Title:        title,
		ProductionID: s.ProdID,
		Start:        s.Start,
		End:          s.End,
	}
}

type nowNextSlotJSON struct {
	Title        string `json:"title"`
	DisplayTitle string `json:"displayTitle"`
	ProdID       string `json:"prodId"`
	Start        string `json:"start"`
	End          string `json:"end"`
}

type nowNextResponse struct {
	Channels []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		StreamURL string `json:"streamUrl"`
		Slots     struct {
			Now  nowNextSlotJSON `json:"now"`
			Next nowNextSlotJSON `json:"next"`
		} `json:"slots"`
	} `json:"channels"`
}
