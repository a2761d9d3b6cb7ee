package api

import (
	"context"
	"time"

	"github.com/lysyi3m/kingsfeeds/app/feed"
	"github.com/lysyi3m/kingsfeeds/app/tasks"
	"github.com/lysyi3m/kingsfeeds/app/view"
)

type LoaderInterface interface {
	Load(ctx context.Context) (*feed.FeedResult, error)
}

type GeneratorInterface interface {
	Run(result *feed.FeedResult) (string, error)
}

var (
	_ LoaderInterface    = (*feed.Pipeline)(nil)
	_ GeneratorInterface = (*feed.Generator)(nil)
)

type Handler struct {
	proxy     LoaderInterface
	generator GeneratorInterface
	refresher tasks.RefresherInterface
	version   string
	startedAt time.Time
}

type ErrorResponse struct {
	Message    string           `json:"message"`
	Error      string           `json:"error"`
	Violations []feed.Violation `json:"violations,omitempty"`
}

type PostsResponse struct {
	Feed      view.FeedView `json:"feed"`
	FetchedAt time.Time     `json:"fetched_at"`
	Stale     bool          `json:"stale"`
	Error     string        `json:"error,omitempty"`
}
