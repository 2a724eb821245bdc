package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nolcrawler/internal/catalog"
	"nolcrawler/pkg/errors"
)

// fakeSource serves canned courses and can fail the first attempts of
// chosen indices.
type fakeSource struct {
	calls     map[int]int
	failUntil map[int]int
	failWith  func(index int) error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:     make(map[int]int),
		failUntil: make(map[int]int),
	}
}

func (s *fakeSource) GetCourse(_ context.Context, index int) (*catalog.Course, error) {
	s.calls[index]++
	if s.calls[index] <= s.failUntil[index] {
		return nil, s.failWith(index)
	}
	course := catalog.Course{SerialNo: "0001"}
	return &course, nil
}

// collectingPublisher records published messages
type collectingPublisher struct {
	messages [][]byte
	trimmed  bool
}

func (p *collectingPublisher) Publish(_ string, message []byte) error {
	p.messages = append(p.messages, message)
	return nil
}

func (p *collectingPublisher) TrimStreams() error {
	p.trimmed = true
	return nil
}

func (p *collectingPublisher) Close() error { return nil }

func TestWorkerPublishesEveryIndex(t *testing.T) {
	source := newFakeSource()
	pub := &collectingPublisher{}
	w := NewWorker(source, pub, 2, 7, 0, time.Millisecond)

	err := w.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, pub.messages, 5)
	assert.True(t, pub.trimmed)

	// records carry their global index
	var first map[string]interface{}
	assert.NoError(t, json.Unmarshal(pub.messages[0], &first))
	assert.EqualValues(t, 2, first["index"])

	var last map[string]interface{}
	assert.NoError(t, json.Unmarshal(pub.messages[len(pub.messages)-1], &last))
	assert.EqualValues(t, 6, last["index"])
}

func TestWorkerRetriesNetworkErrors(t *testing.T) {
	source := newFakeSource()
	source.failUntil[3] = 2
	source.failWith = func(index int) error {
		return errors.NewNetwork("nol", "connection reset", nil)
	}
	pub := &collectingPublisher{}
	w := NewWorker(source, pub, 0, 5, 3, time.Millisecond)

	err := w.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, pub.messages, 5)
	assert.Equal(t, 3, source.calls[3])
}

func TestWorkerStopsOnNonRetryableError(t *testing.T) {
	source := newFakeSource()
	source.failUntil[1] = 1
	source.failWith = func(index int) error {
		return errors.NewDecode("一x", "unexpected character")
	}
	pub := &collectingPublisher{}
	w := NewWorker(source, pub, 0, 5, 3, time.Millisecond)

	err := w.Run(context.Background())
	assert.Error(t, err)
	assert.Len(t, pub.messages, 1)
	assert.Equal(t, 1, source.calls[1])
}

func TestWorkerStopsWhenRetriesExhausted(t *testing.T) {
	source := newFakeSource()
	source.failUntil[0] = 100
	source.failWith = func(index int) error {
		return errors.NewNetwork("nol", "connection reset", nil)
	}
	pub := &collectingPublisher{}
	w := NewWorker(source, pub, 0, 5, 2, time.Millisecond)

	err := w.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, pub.messages)
	assert.Equal(t, 3, source.calls[0])
}

func TestWorkerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := newFakeSource()
	source.failUntil[0] = 100
	source.failWith = func(index int) error {
		return errors.NewNetwork("nol", "connection reset", nil)
	}
	pub := &collectingPublisher{}
	w := NewWorker(source, pub, 0, 5, 10, time.Minute)

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
