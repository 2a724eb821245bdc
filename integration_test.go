package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"nolcrawler/internal/catalog"
	"nolcrawler/internal/nol"
	"nolcrawler/services/publisher"
	"nolcrawler/services/worker"
)

// courseRow renders one listing row in the modern 16-cell layout. The
// platform cell is left empty so no cross-reference probe is made.
func courseRow(serial int) string {
	cells := []string{
		fmt.Sprintf("%04d", serial),
		"資工系",
		"&nbsp;",
		"01",
		`<a href="search_result.php?dpt_code=9020&cstype=2">資料結構</a>`,
		"3.0",
		"CSIE101",
		"&nbsp;",
		"902E2010",
		`<a href="teacher.php?teacher_id=901">王小明</a>`,
		"50",
		"一1234(普201)",
		"&nbsp;",
		"&nbsp;",
		"&nbsp;",
		"&nbsp;",
	}
	return "<tr><td>" + strings.Join(cells, "</td><td>") + "</td></tr>"
}

// listingPage renders a search result page: three layout tables
// followed by the course table with its header row.
func listingPage(first, count int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString("<table><tr><td>nav</td></tr></table>")
	sb.WriteString("<table><tr><td>search form</td></tr></table>")
	sb.WriteString("<table><tr><td>semester info</td></tr></table>")
	sb.WriteString("<table><tr><th>流水號</th></tr>")
	for i := 0; i < count; i++ {
		sb.WriteString(courseRow(first + i))
	}
	sb.WriteString("</table></body></html>")
	return sb.String()
}

func encodeBig5(t *testing.T, s string) []byte {
	t.Helper()
	enc, _ := charset.Lookup("big5")
	require.NotNil(t, enc)
	out, err := io.ReadAll(transform.NewReader(strings.NewReader(s), enc.NewEncoder()))
	require.NoError(t, err)
	return out
}

// TestCrawlPipeline runs the whole pipeline against a fake listing
// service: transport, paged crawler, worker and the line publisher.
func TestCrawlPipeline(t *testing.T) {
	const total = 18 // two pages, the second one short

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startRec, err := strconv.Atoi(r.URL.Query().Get("startrec"))
		if err != nil {
			http.Error(w, "bad startrec", http.StatusBadRequest)
			return
		}
		count := total - startRec
		if count > catalog.PageSize {
			count = catalog.PageSize
		}
		if count < 0 {
			count = 0
		}
		w.Write(encodeBig5(t, listingPage(startRec, count)))
	}))
	defer server.Close()

	client := nol.NewClient("104-1", nol.Options{BaseURL: server.URL})
	crawler, err := catalog.NewCrawler("104-1", client, client, 5)
	require.NoError(t, err)

	var out bytes.Buffer
	pub := publisher.NewWriterPublisher(&out, false)
	defer pub.Close()

	w := worker.NewWorker(crawler, pub, 0, total, 1, time.Millisecond)
	require.NoError(t, w.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, total)

	for i, line := range lines {
		var course catalog.Course
		require.NoError(t, json.Unmarshal([]byte(line), &course), "line %d", i)

		assert.Equal(t, i, course.Index)
		assert.Equal(t, fmt.Sprintf("%04d", i), course.SerialNo)
		assert.Equal(t, "資料結構", course.Title)
		assert.Equal(t, 3.0, course.Credit)
		assert.False(t, course.NotFound)
		assert.Nil(t, course.PlatformID)

		require.Len(t, course.Schedule, 1)
		assert.Equal(t, "一", course.Schedule[0].Day)
		assert.Equal(t, []string{"1", "2", "3", "4"}, course.Schedule[0].Slots)
		assert.Equal(t, "普201", course.Schedule[0].Classroom)
	}
}

// TestCrawlPipelineResumesFromStartIndex checks that a crawl started
// mid-catalog only touches the pages it needs.
func TestCrawlPipelineResumesFromStartIndex(t *testing.T) {
	const total = 18

	var requested []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startRec, _ := strconv.Atoi(r.URL.Query().Get("startrec"))
		requested = append(requested, startRec)
		count := total - startRec
		if count > catalog.PageSize {
			count = catalog.PageSize
		}
		w.Write(encodeBig5(t, listingPage(startRec, count)))
	}))
	defer server.Close()

	client := nol.NewClient("104-1", nol.Options{BaseURL: server.URL})
	crawler, err := catalog.NewCrawler("104-1", client, client, 5)
	require.NoError(t, err)

	var out bytes.Buffer
	pub := publisher.NewWriterPublisher(&out, false)
	defer pub.Close()

	w := worker.NewWorker(crawler, pub, 16, total, 1, time.Millisecond)
	require.NoError(t, w.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []int{15}, requested)

	var course catalog.Course
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &course))
	assert.Equal(t, 16, course.Index)
	assert.Equal(t, "0016", course.SerialNo)
}
