// Package nol talks to the NTU Online course search: a Big5-encoded
// legacy service that negotiates nothing newer than TLS 1.0.
package nol

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"nolcrawler/logger"
	"nolcrawler/pkg/errors"
	"nolcrawler/services/cache"
)

const (
	// DefaultBaseURL is the course search endpoint
	DefaultBaseURL = "https://nol.ntu.edu.tw/nol/coursesearch/search_result.php"

	// docEncoding is the charset the service serves regardless of era
	docEncoding = "big5"

	// rateLimitKey guards the endpoint across crawler processes
	rateLimitKey = "nol_rate_limited"

	defaultTimeout   = 30 * time.Second
	defaultBlockTime = 5 * time.Minute
)

// baseQuery is sent with every search request; startrec and
// current_sem are added per call.
var baseQuery = url.Values{
	"allproced": {"yes"},
	"alltime":   {"yes"},
	"csname":    {""},
	"cstype":    {"1"},
}

// Options configures a Client. The zero value gives defaults with no
// rate-limit guard.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Guard     cache.CacheService
	BlockTime time.Duration
}

// Client fetches listing pages for one semester and probes the CEIBA
// gateway. It is not safe for concurrent use; a Crawler owns its
// client exclusively.
type Client struct {
	http      *resty.Client
	probe     *resty.Client
	semester  string
	baseURL   string
	guard     cache.CacheService
	blockTime time.Duration
	log       *logger.Logger
}

// NewClient creates a client for the given semester
func NewClient(semester string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	blockTime := opts.BlockTime
	if blockTime == 0 {
		blockTime = defaultBlockTime
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetTLSClientConfig(legacyTLSConfig())

	// the CEIBA probe must see the 302 itself, never follow it
	probeClient := resty.New().SetTimeout(timeout)
	probeClient.GetClient().CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		http:      httpClient,
		probe:     probeClient,
		semester:  semester,
		baseURL:   baseURL,
		guard:     opts.Guard,
		blockTime: blockTime,
		log:       logger.ForComponent("nol"),
	}
}

// legacyTLSConfig pins TLS 1.0 with the 3DES cipher: the only
// combination the NOL server accepts short of RC4.
func legacyTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS10,
		MaxVersion:   tls.VersionTLS10,
		CipherSuites: []uint16{tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA},
	}
}

// Semester returns the semester identifier the client fetches
func (c *Client) Semester() string {
	return c.semester
}

// FetchPage retrieves the listing page whose first record is startRec,
// decoded from Big5 to UTF-8.
func (c *Client) FetchPage(ctx context.Context, startRec int) (io.Reader, error) {
	query := url.Values{
		"current_sem": {c.semester},
		"startrec":    {strconv.Itoa(startRec)},
	}
	return c.get(ctx, query)
}

// get performs one search request with the base query plus extra
// parameters, enforcing the rate-limit guard and the 200 status.
func (c *Client) get(ctx context.Context, extra url.Values) (io.Reader, error) {
	if c.guard != nil {
		if _, err := c.guard.Get(rateLimitKey); err == nil {
			return nil, errors.NewRateLimit("nol", c.blockTime)
		}
	}

	query := url.Values{}
	for k, v := range baseQuery {
		query[k] = v
	}
	for k, v := range extra {
		query[k] = v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(c.baseURL)
	if err != nil {
		return nil, errors.NewNetwork("nol", "fetching listing", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		if c.guard != nil {
			seconds := strconv.Itoa(int(c.blockTime / time.Second))
			if setErr := c.guard.Set(rateLimitKey, []byte(seconds), c.blockTime); setErr != nil {
				c.log.Warn().Err(setErr).Msg("Failed to arm rate-limit guard")
			}
		}
		return nil, errors.NewRateLimit("nol", c.blockTime)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.NewNetwork("nol",
			fmt.Sprintf("HTTP status %d (not %d)", resp.StatusCode(), http.StatusOK), nil)
	}

	return decodeBody(resp.Body())
}

// ProbeRedirect issues a GET with redirects disabled and reports the
// status and Location header of the immediate response.
func (c *Client) ProbeRedirect(ctx context.Context, target string) (int, string, error) {
	resp, err := c.probe.R().SetContext(ctx).Get(target)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), resp.Header().Get("Location"), nil
}

// decodeBody converts the Big5 response to UTF-8
func decodeBody(body []byte) (io.Reader, error) {
	enc, _ := charset.Lookup(docEncoding)
	if enc == nil {
		return nil, errors.NewParsing("nol", "unknown document encoding "+docEncoding, nil)
	}
	utf8Reader := enc.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, errors.NewParsing("nol", "decoding "+docEncoding+" body", err)
	}
	return &buf, nil
}
