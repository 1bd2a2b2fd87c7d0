// Package schedule fetches the live EPG and now/next data. Upstream start
// times come as London wall-clock minutes; this package converts them to
// the local timezone for display while keeping the original UTC timestamp.
package schedule

import (
	"fmt"
	"net/http"
	"time"

	"itvhub/pkg/logger"
)

const (
	defaultScheduleURL = "https://scheduled.oasvc.itv.com/scheduled/itvonline/schedules"
	scheduleAccept     = "application/vnd.itv.hubsvc.schedule.v2+vnd.itv.hubsvc.channel.v2+hal+json"

	// platformTag=ctv is exactly what a web browser sends
	schedulePlatformTag = "ctv"

	requestTimeFormat = "200601021504"
	slotTimeFormat    = "2006-01-02T15:04"
)

// Getter is the HTTP capability the schedule fetcher needs.
type Getter interface {
	GetJSON(url string, out any, headers http.Header, cookies []*http.Cookie) error
}

// ChannelInfo describes one live channel in the schedule.
type ChannelInfo struct {
	Name        string
	Strapline   string
	PlaylistURL string
}

// Slot is one programme in a channel's schedule.
type Slot struct {
	ProgrammeTitle string
	ProductionID   string
	// StartTime is the local wall-clock start, HH:MM
	StartTime string
	// OrigStart is the upstream's UTC start timestamp, unmodified
	OrigStart string
}

// ChannelSchedule pairs a channel with its ordered programme slots.
type ChannelSchedule struct {
	Channel ChannelInfo
	Slots   []Slot
}

// Fetcher retrieves live schedules from the scheduled.oasvc service.
type Fetcher struct {
	fetch       Getter
	scheduleURL string
	nowNextURL  string
	london      *time.Location
	local       *time.Location
	now         func() time.Time
}

// NewFetcher creates a schedule fetcher. It fails only when the IANA zone
// data for Europe/London is unavailable.
func NewFetcher(getter Getter) (*Fetcher, error) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		return nil, fmt.Errorf("schedule: failed to load Europe/London zone data: %w", err)
	}
	return &Fetcher{
		fetch:       getter,
		scheduleURL: defaultScheduleURL,
		nowNextURL:  defaultNowNextURL,
		london:      london,
		local:       time.Local,
		now:         time.Now,
	}, nil
}

// localOffset returns local time minus London time, in whole seconds.
// Both offsets are read from the same clock sample, so successive calls
// cannot drift against each other.
func (f *Fetcher) localOffset() time.Duration {
	now := f.now()
	_, localOff := now.In(f.local).Zone()
	_, londonOff := now.In(f.london).Zone()
	return time.Duration(localOff-londonOff) * time.Second
}

// LiveSchedule returns the live channels' schedules from now up to the
// given number of hours ahead. Fetch failures propagate unmodified; the
// caller decides how schedule display degrades.
func (f *Fetcher) LiveSchedule(hours int) ([]ChannelSchedule, error) {
	now := f.now()
	britNow := now.In(f.london)
	offset := f.localOffset()

	from := britNow.Format(requestTimeFormat)
	to := britNow.Add(time.Duration(hours) * time.Hour).Format(requestTimeFormat)
	url := fmt.Sprintf("%s?from=%s&platformTag=%s&to=%s", f.scheduleURL, from, schedulePlatformTag, to)

	headers := http.Header{"Accept": []string{scheduleAccept}}
	var resp scheduleResponse
	if err := f.fetch.GetJSON(url, &resp, headers, nil); err != nil {
		return nil, err
	}

	schedules := make([]ChannelSchedule, 0, len(resp.Embedded.Schedule))
	for _, entry := range resp.Embedded.Schedule {
		channel := entry.Embedded.Channel
		out := ChannelSchedule{
			Channel: ChannelInfo{
				Name:        channel.Name,
				Strapline:   channel.Strapline,
				PlaylistURL: channel.Links.Playlist.Href,
			},
			Slots: make([]Slot, 0, len(entry.Embedded.Slot)),
		}
		for _, slot := range entry.Embedded.Slot {
			out.Slots = append(out.Slots, Slot{
				ProgrammeTitle: slot.ProgrammeTitle,
				ProductionID:   slot.ProductionID,
				StartTime:      localStartTime(slot.StartTime, offset),
				OrigStart:      clipSeconds(slot.OnAirTimeUTC),
			})
		}
		schedules = append(schedules, out)
	}

	logger.Debug("Fetched live schedule", "channels", len(schedules), "hours", hours)
	return schedules, nil
}

// localStartTime converts an upstream start time (London clock, minute
// precision, e.g. "2022-11-22T20:00Z") to a local HH:MM string.
func localStartTime(startTime string, offset time.Duration) string {
	if len(startTime) < len(slotTimeFormat) {
		return startTime
	}
	t, err := time.Parse(slotTimeFormat, startTime[:len(slotTimeFormat)])
	if err != nil {
		logger.Warn("Unparseable schedule start time", "startTime", startTime)
		return startTime
	}
	return t.Add(offset).Format("15:04")
}

// clipSeconds trims an upstream UTC timestamp to second precision,
// dropping any zone suffix (e.g. "2022-11-22T20:00:00Z" -> "2022-11-22T20:00:00").
func clipSeconds(ts string) string {
	const isoSeconds = len("2006-01-02T15:04:05")
	if len(ts) > isoSeconds {
		return ts[:isoSeconds]
	}
	return ts
}

// scheduleResponse mirrors the HAL layout of the schedules endpoint.
type scheduleResponse struct {
	Embedded struct {
		Schedule []struct {
			Embedded struct {
				Channel struct {
					Name      string `json:"name"`
					Strapline string `json:"strapline"`
					Links     struct {
						Playlist struct {
							Href string `json:"href"`
						} `json:"playlist"`
					} `json:"_links"`
				} `json:"channel"`
				Slot []struct {
					ProgrammeTitle string `json:"programmeTitle"`
					ProductionID   string `json:"productionId"`
					StartTime      string `json:"startTime"`
					OnAirTimeUTC   string `json:"onAirTimeUTC"`
				} `json:"slot"`
			} `json:"_embedded"`
		} `json:"schedule"`
	} `json:"_embedded"`
}
