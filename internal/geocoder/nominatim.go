package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tkoivula/photonest/internal/conf"
)

const (
	// DefaultNominatimEndpoint is the public OSM reverse geocoding endpoint.
	DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org/reverse"

	// UserAgent identifies the application, required by the Nominatim usage policy.
	UserAgent = "PhotoNest/1.0"

	defaultRequestTimeout = 10 * time.Second
)

// NominatimResponse represents the structure of a Nominatim reverse geocoding reply
type NominatimResponse struct {
	Error       string `json:"error"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Attraction   string `json:"attraction"`
		Suburb       string `json:"suburb"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

// NominatimProvider resolves coordinates through the OSM Nominatim API.
type NominatimProvider struct {
	endpoint string
	client   *http.Client
}

func newNominatimProvider(settings *conf.Settings) *NominatimProvider {
	endpoint := settings.Geocoder.Endpoint
	if endpoint == "" {
		endpoint = DefaultNominatimEndpoint
	}
	timeout := settings.Geocoder.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &NominatimProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// ReverseGeocode implements the Provider interface for NominatimProvider.
func (p *NominatimProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (*Location, error) {
	url := fmt.Sprintf("%s?format=jsonv2&lat=%.6f&lon=%.6f&zoom=14&accept-language=en",
		p.endpoint, lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching geocoding data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 response: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var reply NominatimResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("error unmarshaling geocoding data: %w", err)
	}

	// Nominatim reports ocean and other unmappable coordinates as an error
	// field in a 200 response. That is "no result", not a failure.
	if reply.Error != "" {
		return nil, nil
	}

	location := buildLocation(&reply)
	if location.Name == "" {
		return nil, nil
	}
	return &location, nil
}

// buildLocation picks the most specific place and locality from the address
// and joins the non-empty parts.
func buildLocation(reply *NominatimResponse) Location {
	place := firstNonEmpty(reply.Address.Attraction, reply.Address.Suburb)
	city := firstNonEmpty(reply.Address.City, reply.Address.Town, reply.Address.Village, reply.Address.Municipality)
	country := reply.Address.Country

	var parts []string
	for _, part := range []string{place, city, country} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return Location{
		Name:    strings.Join(parts, ", "),
		City:    city,
		Country: country,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
