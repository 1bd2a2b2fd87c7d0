// Package search queries the ITV text-search service and flattens its three
// result entity types (programme, special, film) into one row shape.
package search

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"itvhub/pkg/logger"
)

const (
	defaultSearchURL = "https://textsearch.prd.oasvc.itv.com/search"

	searchFeatureSet = "clearkey,outband-webvtt,hls,aes,playready,widevine,fairplay,bbts,progressive,hd,rtmpe"
)

// Tier values reported per result
const (
	TierFree = "FREE"
	TierPaid = "PAID"
)

// Getter is the HTTP capability the search client needs.
type Getter interface {
	GetJSON(url string, out any, headers http.Header, cookies []*http.Cookie) error
}

// Result is one normalized search hit.
type Result struct {
	EntityType   string
	Title        string
	ProductionID string
	Synopsis     string
	ImageHref    string
	// Tier is FREE or PAID; PAID content needs a premium entitlement
	Tier string
}

// Client queries the text-search service.
type Client struct {
	fetch   Getter
	baseURL string
}

// NewClient creates a search client.
func NewClient(getter Getter) *Client {
	return &Client{fetch: getter, baseURL: defaultSearchURL}
}

// Search runs a free-text query. No results is not an error: the upstream
// answers either 204 No Content or an empty results list, both of which
// yield an empty slice here.
func (c *Client) Search(query string) ([]Result, error) {
	params := url.Values{
		"broadcaster": []string{"itv"},
		"featureSet":  []string{searchFeatureSet},
		"onlyFree":    []string{"false"},
		"platform":    []string{"dotcom"},
		"query":       []string{query},
	}

	var resp searchResponse
	if err := c.fetch.GetJSON(c.baseURL+"?"+params.Encode(), &resp, nil, nil); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Results))
	for _, item := range resp.Results {
		result, err := normalizeItem(item)
		if err != nil {
			logger.Warn("Skipping unrecognized search result", "err", err)
			continue
		}
		results = append(results, result)
	}

	logger.Debug("Search completed", "query", query, "results", len(results))
	return results, nil
}

func normalizeItem(item searchItem) (Result, error) {
	var data searchItemData
	if err := json.Unmarshal(item.Data, &data); err != nil {
		return Result{}, fmt.Errorf("search: bad result data: %w", err)
	}

	result := Result{
		EntityType:   item.EntityType,
		ProductionID: data.ProductionID,
		Synopsis:     data.Synopsis,
		ImageHref:    data.ImageHref,
		Tier:         data.Tier,
	}

	switch item.EntityType {
	case "programme":
		result.Title = data.ProgrammeTitle
		// Programmes carry the image on their latest episode
		if result.ImageHref == "" {
			result.ImageHref = data.LatestAvailableEpisode.ImageHref
		}
	case "special":
		result.Title = data.SpecialTitle
	case "film":
		result.Title = data.FilmTitle
	default:
		return Result{}, fmt.Errorf("search: unknown entityType %q", item.EntityType)
	}
	return result, nil
}

type searchResponse struct {
	Results  []searchItem `json:"results"`
	MaxScore float64      `json:"maxScore"`
}

type searchItem struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	Data       json.RawMessage `json:"data"`
}

// searchItemData is the union of the per-entity-type data fields; only the
// ones relevant to the entity type are populated.
type searchItemData struct {
	ProductionID           string `json:"productionId"`
	Synopsis               string `json:"synopsis"`
	ImageHref              string `json:"imageHref"`
	Tier                   string `json:"tier"`
	ProgrammeTitle         string `json:"programmeTitle"`
	SpecialTitle           string `json:"specialTitle"`
	FilmTitle              string `json:"filmTitle"`
	LatestAvailableEpisode struct {
		ImageHref string `json:"imageHref"`
	} `json:"latestAvailableEpisode"`
}
