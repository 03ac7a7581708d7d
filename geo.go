package codegate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NewIPWhoClient returns a GeoLookup backed by the ipwho.is API. Lookups
// are best-effort: timeouts, transport errors and negative responses all
// yield a zero GeoInfo.
func NewIPWhoClient(timeout time.Duration) *IPWhoClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IPWhoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://ipwho.is",
	}
}

// IPWhoClient resolves IP geolocation via ipwho.is.
type IPWhoClient struct {
	httpClient *http.Client
	baseURL    string
}

func (c *IPWhoClient) Lookup(ctx context.Context, ip string) GeoInfo {
	if !IsValidIP(ip) || IsPrivateIP(ip) {
		return GeoInfo{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, ip), nil)
	if err != nil {
		return GeoInfo{}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GeoInfo{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return GeoInfo{}
	}

	var body struct {
		Success bool   `json:"success"`
		Country string `json:"country"`
		Region  string `json:"region"`
		City    string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Success {
		return GeoInfo{}
	}
	return GeoInfo{Country: body.Country, Region: body.Region, City: body.City}
}

// NoGeo is a GeoLookup that never resolves anything. Default when no
// lookup is wired.
type NoGeo struct{}

func (NoGeo) Lookup(context.Context, string) GeoInfo { return GeoInfo{} }
