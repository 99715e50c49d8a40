package postcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/citylistings/listing-service/internal/platform/logger"
)

// Upstream failures are classified so the HTTP layer can map them to
// distinct gateway statuses instead of a generic 500.
var (
	ErrInvalidPostcode   = errors.New("postcode: invalid postcode format")
	ErrNotFound          = errors.New("postcode: postcode not found")
	ErrTimeout           = errors.New("postcode: upstream timed out")
	ErrConnection        = errors.New("postcode: upstream unreachable")
	ErrMalformedResponse = errors.New("postcode: malformed upstream response")
)

var postcodePattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9R][0-9A-Z]?[0-9][ABD-HJLNP-UW-Z]{2}$`)

// Postcode is the subset of the upstream result the service exposes.
type Postcode struct {
	Postcode      string  `json:"postcode"`
	Outcode       string  `json:"outcode"`
	Incode        string  `json:"incode"`
	Region        string  `json:"region"`
	AdminDistrict string  `json:"adminDistrict"`
	Longitude     float64 `json:"longitude"`
	Latitude      float64 `json:"latitude"`
}

type upstreamResult struct {
	Postcode      string   `json:"postcode"`
	Outcode       string   `json:"outcode"`
	Incode        string   `json:"incode"`
	Region        *string  `json:"region"`
	AdminDistrict *string  `json:"admin_district"`
	Longitude     *float64 `json:"longitude"`
	Latitude      *float64 `json:"latitude"`
}

type upstreamResponse struct {
	Status int             `json:"status"`
	Result *upstreamResult `json:"result"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     log,
	}
}

// Random fetches one random UK postcode from the upstream service.
func (c *Client) Random(ctx context.Context) (*Postcode, error) {
	return c.get(ctx, c.baseURL+"/random/postcodes")
}

// Lookup resolves a postcode. The input is normalized to the canonical
// spaceless uppercase form and validated before any network call.
func (c *Client) Lookup(ctx context.Context, raw string) (*Postcode, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if !postcodePattern.MatchString(cleaned) {
		return nil, ErrInvalidPostcode
	}
	return c.get(ctx, c.baseURL+"/postcodes/"+url.PathEscape(cleaned))
}

func (c *Client) get(ctx context.Context, endpoint string) (*Postcode, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("postcode client: unexpected upstream status", "url", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrMalformedResponse, resp.StatusCode)
	}

	var body upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("postcode client: undecodable upstream body", "url", endpoint, "error", err)
		return nil, ErrMalformedResponse
	}
	if body.Result == nil || body.Result.Postcode == "" {
		return nil, ErrMalformedResponse
	}

	out := &Postcode{
		Postcode: body.Result.Postcode,
		Outcode:  body.Result.Outcode,
		Incode:   body.Result.Incode,
	}
	if body.Result.Region != nil {
		out.Region = *body.Result.Region
	}
	if body.Result.AdminDistrict != nil {
		out.AdminDistrict = *body.Result.AdminDistrict
	}
	if body.Result.Longitude != nil {
		out.Longitude = *body.Result.Longitude
	}
	if body.Result.Latitude != nil {
		out.Latitude = *body.Result.Latitude
	}
	return out, nil
}

func (c *Client) classifyTransportError(endpoint string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		c.logger.Warn("postcode client: upstream timeout", "url", endpoint)
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	c.logger.Warn("postcode client: upstream connection failure", "url", endpoint, "error", err)
	return ErrConnection
}
