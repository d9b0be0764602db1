// Video producer backed by the Pexels video search API.
//
// Searching for a specific item returns bad stock footage, so the query asks
// for the genre atmosphere instead ("<genre> cinematic background loop") and
// the adapter picks a lightweight HD file for fast loading. When the request
// carries a source image URL the adapter treats it as an animation hint and
// still resolves the clip by genre; the dependency matters to the
// orchestrator's scheduling, not to the search.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultPexelsURL = "https://api.pexels.com/videos/search"

// VideoProducer resolves an ambient background clip for a request's genre.
type VideoProducer struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewVideoProducer builds a VideoProducer with its own bounded-timeout HTTP
// client. An empty baseURL selects the Pexels production endpoint.
func NewVideoProducer(apiKey, baseURL string, timeout time.Duration) *VideoProducer {
	if baseURL == "" {
		baseURL = defaultPexelsURL
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &VideoProducer{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Producer.
func (p *VideoProducer) Name() string { return "video" }

type pexelsVideoFile struct {
	Link  string `json:"link"`
	Width int    `json:"width"`
}

type pexelsResponse struct {
	Videos []struct {
		VideoFiles []pexelsVideoFile `json:"video_files"`
	} `json:"videos"`
}

// Produce searches for one landscape clip matching the genre mood and returns
// its URL as a VideoOutput. No results, transport errors, and non-200
// statuses all become a *Failure.
func (p *VideoProducer) Produce(ctx context.Context, req Request) (Output, error) {
	query := fmt.Sprintf("%s cinematic background loop", req.Genre)
	endpoint := fmt.Sprintf("%s?query=%s&per_page=1&orientation=landscape&size=medium",
		p.baseURL, url.QueryEscape(query))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, failed(p.Name(), err)
	}
	httpReq.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, failed(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failf(p.Name(), "unexpected status %d", resp.StatusCode)
	}

	var out pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, failed(p.Name(), err)
	}
	if len(out.Videos) == 0 || len(out.Videos[0].VideoFiles) == 0 {
		return nil, failf(p.Name(), "no videos found for %q", query)
	}

	// Prefer a lightweight HD file; fall back to whatever came first.
	files := out.Videos[0].VideoFiles
	best := files[0]
	for _, f := range files {
		if f.Width >= 1280 && f.Width < 2000 {
			best = f
			break
		}
	}
	return &VideoOutput{URL: best.Link}, nil
}
