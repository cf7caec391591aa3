package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrLookupFailed is returned when the provider answers but cannot place the IP.
var ErrLookupFailed = errors.New("geo lookup failed")

// IPAPIClient queries an ip-api.com compatible endpoint: GET {base}/json/{ip}.
type IPAPIClient struct {
	base string
	http *http.Client
}

// NewIPAPIClient builds a client. A nil httpClient gets one with cfg.Timeout.
func NewIPAPIClient(cfg Config, httpClient *http.Client) *IPAPIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &IPAPIClient{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: httpClient,
	}
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (c *IPAPIClient) Lookup(ctx context.Context, ip string) (Location, error) {
	if !isPublic(ip) {
		return Location{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/json/"+url.PathEscape(ip)+"?fields=status,message,city,country,lat,lon", nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Location{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("geo decode: %w", err)
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, body.Message)
	}

	return Location{
		City:      body.City,
		Country:   body.Country,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}
