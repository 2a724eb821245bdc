package nol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	apperrors "nolcrawler/pkg/errors"
)

// memoryCache is an in-memory CacheService for guard tests
type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (m *memoryCache) Set(key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

// encodeBig5 converts UTF-8 fixture text to the wire encoding
func encodeBig5(t *testing.T, s string) []byte {
	t.Helper()
	enc, _ := charset.Lookup("big5")
	require.NotNil(t, enc)
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader([]byte(s)), enc.NewEncoder()))
	require.NoError(t, err)
	return out
}

func TestFetchPageSendsQueryAndDecodesBig5(t *testing.T) {
	fixture := "<html><body><p>資料結構</p></body></html>"

	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write(encodeBig5(t, fixture))
	}))
	defer server.Close()

	client := NewClient("104-1", Options{BaseURL: server.URL})
	body, err := client.FetchPage(context.Background(), 30)
	require.NoError(t, err)

	decoded, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, fixture, string(decoded))

	assert.Equal(t, []string{"104-1"}, gotQuery["current_sem"])
	assert.Equal(t, []string{"30"}, gotQuery["startrec"])
	assert.Equal(t, []string{"yes"}, gotQuery["allproced"])
	assert.Equal(t, []string{"1"}, gotQuery["cstype"])
}

func TestFetchPageRejectsUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("104-1", Options{BaseURL: server.URL})
	_, err := client.FetchPage(context.Background(), 0)
	require.Error(t, err)

	var crawlErr *apperrors.CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Equal(t, apperrors.ErrorTypeNetwork, crawlErr.Type)
	assert.True(t, crawlErr.IsRetryable())
}

func TestFetchPageArmsRateLimitGuard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	guard := newMemoryCache()
	client := NewClient("104-1", Options{BaseURL: server.URL, Guard: guard, BlockTime: time.Minute})

	_, err := client.FetchPage(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, guard.data, "nol_rate_limited")

	// the next call fails fast on the guard without hitting the server
	server.Close()
	_, err = client.FetchPage(context.Background(), 0)
	require.Error(t, err)

	var crawlErr *apperrors.CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Equal(t, apperrors.ErrorTypeRateLimit, crawlErr.Type)
}

func TestProbeRedirectDoesNotFollow(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirect must not be followed")
	}))
	defer target.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/course/abc/", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient("104-1", Options{BaseURL: server.URL})
	status, location, err := client.ProbeRedirect(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, target.URL+"/course/abc/", location)
}

const metadataFixture = `<html><body>
<select id="select_sem">
<option value="104-2">104-2</option>
<option value="104-1" selected>104-1</option>
<option value="103-2">103-2</option>
</select>
<span><b>13542</b></span>
</body></html>`

func TestMetadataQueries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encodeBig5(t, metadataFixture))
	}))
	defer server.Close()

	client := NewClient("", Options{BaseURL: server.URL})
	ctx := context.Background()

	semesters, err := client.Semesters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"104-2", "104-1", "103-2"}, semesters)

	def, err := client.DefaultSemester(ctx)
	require.NoError(t, err)
	assert.Equal(t, "104-1", def)

	count, err := client.CourseCount(ctx, "104-1")
	require.NoError(t, err)
	assert.Equal(t, 13542, count)
}

func TestMetadataMissingDropdownIsParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>maintenance</p></body></html>"))
	}))
	defer server.Close()

	client := NewClient("", Options{BaseURL: server.URL})
	_, err := client.Semesters(context.Background())
	assert.Error(t, err)

	_, err = client.CourseCount(context.Background(), "104-1")
	assert.Error(t, err)
}
