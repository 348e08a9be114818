package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// DefaultTimeout bounds a single reputation lookup.
const DefaultTimeout = 2 * time.Second

// HTTPProvider queries an external reputation feed over HTTP. The feed is an
// opaque scoring input: this client only transports the [0,1] score and the
// reason string.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a client for the feed at baseURL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Score queries the feed for the given address. Any transport or decoding
// failure is reported as core.ErrUpstreamUnavailable so the scoring engine
// can apply its offline fallback.
func (p *HTTPProvider) Score(ctx context.Context, ip string) (float64, string, error) {
	endpoint := fmt.Sprintf("%s?ip=%s", p.baseURL, url.QueryEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("%w: feed returned %d", core.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, "", fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, err)
	}

	if body.Score < 0 || body.Score > 1 {
		return 0, "", fmt.Errorf("%w: score %f out of range", core.ErrUpstreamUnavailable, body.Score)
	}

	return body.Score, body.Reason, nil
}

var _ ports.ReputationProvider = (*HTTPProvider)(nil)
