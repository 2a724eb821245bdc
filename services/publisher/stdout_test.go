package publisher

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStdoutPublisherLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriterPublisher(&buf, false)

	assert.NoError(t, p.Publish("course", []byte(`{"index":0}`)))
	assert.NoError(t, p.Publish("course", []byte(`{"index":1}`)))
	assert.NoError(t, p.TrimStreams())
	assert.NoError(t, p.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, `{"index":0}`, lines[0])
	assert.Equal(t, `{"index":1}`, lines[1])
}

func TestStdoutPublisherPretty(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriterPublisher(&buf, true)

	assert.NoError(t, p.Publish("course", []byte(`{"index":0,"ser_no":"0001"}`)))
	assert.Contains(t, buf.String(), "\n  \"index\": 0")

	assert.Error(t, p.Publish("course", []byte(`{broken`)))
}
