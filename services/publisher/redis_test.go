package publisher

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	p := NewRedisPublisher(ctx, "localhost:6379", 0, "test_courses", 1, 10)
	defer p.Close()

	if err := p.client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	defer p.client.Del(ctx, "test_courses:0")

	payload := []byte(`{"index":42,"ser_no":"0042"}`)
	assert.NoError(t, p.Publish("course", payload))

	entries, err := p.client.XRange(ctx, "test_courses:0", "-", "+").Result()
	assert.NoError(t, err)
	if assert.Len(t, entries, 1) {
		encoded, ok := entries[0].Values["course"].(string)
		assert.True(t, ok)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		assert.NoError(t, err)
		assert.Equal(t, payload, decoded)
	}

	assert.NoError(t, p.TrimStreams())
}
