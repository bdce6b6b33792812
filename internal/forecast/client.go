// Package forecast fetches archived avalanche warnings from the NVE forecast
// API and turns them, together with a region-day calendar and observed
// avalanches, into raw training records.
package forecast

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public NVE avalanche forecast API.
const DefaultBaseURL = "https://api01.nve.no/hydrology/forecast/avalanche/v5.0.1/api"

// languageNorwegian selects Norwegian labels, which the wind table expects.
const languageNorwegian = 1

type Client struct {
	base string
	rest *resty.Client
}

// NewClient returns a client for the API rooted at base.
func NewClient(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second) // archive queries are slow
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// FetchWarnings returns every regional warning valid between from and to.
func (c *Client) FetchWarnings(ctx context.Context, from, to time.Time) ([]Warning, error) {
	path := fmt.Sprintf("/Archive/Warning/All/%d/%s/%s/json",
		languageNorwegian, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var warnings []Warning
	resp, err := c.rest.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&warnings).
		Get(c.base + path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	log.Debug().
		Str("from", from.Format("2006-01-02")).
		Str("to", to.Format("2006-01-02")).
		Int("warnings", len(warnings)).
		Msg("fetched forecast archive")
	return warnings, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
