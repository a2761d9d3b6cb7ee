package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lysyi3m/kingsfeeds/app/metrics"
)

type FetcherInterface interface {
	Fetch(ctx context.Context) (any, error)
}

var _ FetcherInterface = (*Fetcher)(nil)

// Pipeline runs fetch then normalize. It keeps no state between calls.
type Pipeline struct {
	fetcher    FetcherInterface
	normalizer *Normalizer
}

func NewPipeline(fetcher FetcherInterface, normalizer *Normalizer) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		normalizer: normalizer,
	}
}

func (p *Pipeline) Variant() string {
	return p.normalizer.Variant()
}

func (p *Pipeline) Load(ctx context.Context) (*FeedResult, error) {
	start := time.Now()
	variant := p.normalizer.Variant()

	result, err := p.load(ctx)
	duration := time.Since(start)

	if err != nil {
		kind := ErrorKind(err)
		metrics.RecordFetch(variant, kind, duration.Seconds())

		var schemaErr *SchemaValidationError
		if errors.As(err, &schemaErr) {
			slog.Warn("Validation failed", "variant", variant, "violations", len(schemaErr.Violations), "error", err)
		} else {
			slog.Error("RSS fetch error", "variant", variant, "kind", kind, "error", err)
		}
		return nil, err
	}

	metrics.RecordFetch(variant, "ok", duration.Seconds())
	metrics.RecordItems(variant, len(result.Items))

	slog.Debug("Feed loaded", "variant", variant, "title", result.Feed.Title, "items", len(result.Items), "duration", duration)

	return result, nil
}

func (p *Pipeline) load(ctx context.Context) (*FeedResult, error) {
	raw, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return p.normalizer.Normalize(raw)
}
