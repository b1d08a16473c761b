// Package omdb queries the upstream rating API over HTTP/JSON: exact
// title/year/type lookups, broad keyword search with lightweight candidates,
// and follow-up detail fetches by external ID.
package omdb

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posterfall/ratingscout/internal/domain"
)

// Querier is the upstream surface the resolver depends on. Every call counts
// against the daily quota regardless of outcome.
type Querier interface {
	// Exact looks up a single title by exact name, optionally narrowed by
	// year and media type. Returns (nil, nil) when the upstream reports
	// "not found".
	Exact(ctx context.Context, title, year string, mediaType domain.MediaType) (*Record, error)

	// Search performs a broad keyword search. Candidates lack rating fields;
	// a Detail call is required for the full record.
	Search(ctx context.Context, title string) ([]SearchResult, error)

	// Detail fetches the full record for an external ID.
	Detail(ctx context.Context, externalID string) (*Record, error)
}

// Record is a parsed full response. Rating fields are empty when the
// upstream reports "N/A".
type Record struct {
	Title          string
	Year           string
	Type           domain.MediaType
	ExternalID     string
	IMDBRating     string
	RottenTomatoes string
	HasPoster      bool
}

// SearchResult is one lightweight broad-search candidate.
type SearchResult struct {
	Title      string
	Year       string
	Type       domain.MediaType
	ExternalID string
	HasPoster  bool
}

// apiResponse is the upstream wire shape, shared by exact lookups and detail
// fetches. Field names are the upstream contract.
type apiResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Type       string `json:"Type"`
	Poster     string `json:"Poster"`
	IMDBID     string `json:"imdbID"`
	IMDBRating string `json:"imdbRating"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

type searchResponse struct {
	Search []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		IMDBID string `json:"imdbID"`
		Type   string `json:"Type"`
		Poster string `json:"Poster"`
	} `json:"Search"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Client implements Querier against the real API.
type Client struct {
	log        zerolog.Logger
	baseURL    string
	credential domain.CredentialProvider
	timeout    time.Duration
	httpClient *http.Client
}

var _ Querier = (*Client)(nil)

// NewClient creates an upstream client. The credential is read per request
// so a corrected key takes effect without reconstruction.
func NewClient(log zerolog.Logger, baseURL string, credential domain.CredentialProvider, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = domain.DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = domain.DefaultRequestTimeout
	}
	return &Client{
		log:        log.With().Str("module", "omdb").Logger(),
		baseURL:    baseURL,
		credential: credential,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

func (c *Client) Exact(ctx context.Context, title, year string, mediaType domain.MediaType) (*Record, error) {
	params := url.Values{}
	params.Set("t", title)
	if year != "" {
		params.Set("y", year)
	}
	if mediaType.Valid() {
		params.Set("type", string(mediaType))
	}

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "decode exact response: %v", err)
	}
	return c.toRecord(resp)
}

func (c *Client) Search(ctx context.Context, title string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("s", title)

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "decode search response: %v", err)
	}

	if resp.Response != "True" {
		if isCredentialError(resp.Error) {
			return nil, errors.Wrap(domain.ErrInvalidCredential, resp.Error)
		}
		// "not found" is a valid empty result, not an error
		return nil, nil
	}

	results := make([]SearchResult, 0, len(resp.Search))
	for _, item := range resp.Search {
		results = append(results, SearchResult{
			Title:      item.Title,
			Year:       firstYear(item.Year),
			Type:       parseMediaType(item.Type),
			ExternalID: item.IMDBID,
			HasPoster:  usable(item.Poster),
		})
	}
	return results, nil
}

func (c *Client) Detail(ctx context.Context, externalID string) (*Record, error) {
	params := url.Values{}
	params.Set("i", externalID)

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "decode detail response: %v", err)
	}
	return c.toRecord(resp)
}

// fetch performs one bounded HTTP call and returns the raw body. Error
// classification: deadline overrun maps to ErrUpstreamTimeout, a credential
// rejection to ErrInvalidCredential, anything else to ErrUpstreamUnavailable.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "parse base url: %v", err)
	}
	params.Set("apikey", c.credential.GetCredential(ctx))
	target.RawQuery = params.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "build request: %v", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			c.log.Debug().Dur("latency", latency).Msg("request timed out")
			return nil, errors.Wrapf(domain.ErrUpstreamTimeout, "after %v", latency)
		}
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "execute request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.Wrapf(domain.ErrInvalidCredential, "status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "read response: %v", err)
	}

	c.log.Trace().Dur("latency", latency).Int("bytes", len(body)).Msg("upstream call")
	return body, nil
}

// toRecord converts a wire response into a Record, or (nil, nil) for a clean
// "not found".
func (c *Client) toRecord(resp apiResponse) (*Record, error) {
	if resp.Response != "True" {
		if isCredentialError(resp.Error) {
			return nil, errors.Wrap(domain.ErrInvalidCredential, resp.Error)
		}
		return nil, nil
	}

	record := &Record{
		Title:      resp.Title,
		Year:       firstYear(resp.Year),
		Type:       parseMediaType(resp.Type),
		ExternalID: resp.IMDBID,
		HasPoster:  usable(resp.Poster),
	}
	if usable(resp.IMDBRating) {
		record.IMDBRating = resp.IMDBRating
	}
	for _, rating := range resp.Ratings {
		if rating.Source == "Rotten Tomatoes" && usable(rating.Value) {
			record.RottenTomatoes = rating.Value
			break
		}
	}
	return record, nil
}

var yearRe = regexp.MustCompile(`\d{4}`)

// firstYear extracts the leading 4-digit year; series report ranges like
// "2005–2013".
func firstYear(s string) string {
	return yearRe.FindString(s)
}

func parseMediaType(s string) domain.MediaType {
	if strings.EqualFold(s, "series") {
		return domain.MediaTypeSeries
	}
	return domain.MediaTypeMovie
}

// usable filters the upstream's "N/A" placeholder.
func usable(s string) bool {
	return s != "" && s != "N/A"
}

func isCredentialError(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "api key")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
