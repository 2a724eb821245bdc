package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"nolcrawler/internal/catalog"
	"nolcrawler/logger"
	"nolcrawler/pkg/errors"
	"nolcrawler/services/publisher"
)

// CourseSource yields one record per global index. *catalog.Crawler is
// the production implementation.
type CourseSource interface {
	GetCourse(ctx context.Context, index int) (*catalog.Course, error)
}

// Worker walks the listing sequentially from a start index to the
// total count, stamping each record with its global index and handing
// it to the publisher. The pipeline is strictly serial: one in-flight
// request at a time, as the transport handle is not safe for
// concurrent use.
type Worker struct {
	source     CourseSource
	pub        publisher.Publisher
	startIndex int
	count      int
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger
}

// NewWorker creates a worker crawling records [startIndex, count)
func NewWorker(
	source CourseSource,
	pub publisher.Publisher,
	startIndex int,
	count int,
	maxRetries int,
	retryDelay time.Duration,
) *Worker {
	return &Worker{
		source:     source,
		pub:        pub,
		startIndex: startIndex,
		count:      count,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        logger.ForComponent("worker"),
	}
}

// Run crawls and publishes every record. It stops on context
// cancellation, on a non-retryable error, or once retryable errors
// exhaust the attempt budget for one index.
func (w *Worker) Run(ctx context.Context) error {
	for index := w.startIndex; index < w.count; index++ {
		if index%catalog.PageSize == 0 {
			w.logProgress(index)
		}

		course, err := w.getWithRetry(ctx, index)
		if err != nil {
			return err
		}

		course.Index = index
		data, err := json.Marshal(course)
		if err != nil {
			return errors.NewPublisher("worker", "encoding course", err)
		}
		if err := w.pub.Publish("course", data); err != nil {
			return errors.NewPublisher("worker", "publishing course", err)
		}
	}

	w.logProgress(w.count)
	if err := w.pub.TrimStreams(); err != nil {
		w.log.Error().Err(err).Msg("Failed to trim streams")
	}
	return nil
}

// getWithRetry re-invokes GetCourse for retryable errors. The page
// cache stores nothing on failure, so each attempt starts clean.
func (w *Worker) getWithRetry(ctx context.Context, index int) (*catalog.Course, error) {
	for attempt := 0; ; attempt++ {
		course, err := w.source.GetCourse(ctx, index)
		if err == nil {
			return course, nil
		}

		var crawlErr *errors.CrawlError
		retryable := stderrors.As(err, &crawlErr) && crawlErr.IsRetryable()
		if !retryable || attempt >= w.maxRetries {
			return nil, err
		}

		w.log.Warn().
			Err(err).
			Int("index", index).
			Int("attempt", attempt+1).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *Worker) logProgress(index int) {
	percent := 100.0
	if w.count > 0 {
		percent = float64(index) / float64(w.count) * 100
	}
	w.log.Info().
		Int("index", index).
		Int("total", w.count).
		Str("progress", fmt.Sprintf("%.2f%%", percent)).
		Msg("Crawling")
}
