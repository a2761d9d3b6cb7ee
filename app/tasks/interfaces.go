package tasks

import (
	"context"

	"github.com/lysyi3m/kingsfeeds/app/feed"
)

// RefresherInterface defines the background refresh operations used by the API.
// Example usage:
//
//	refresher := NewRefresher(pipeline, 5*time.Minute)
//	refresher.Start()
//	defer refresher.Stop()
//	snapshot, err := refresher.Refresh(ctx)
type RefresherInterface interface {
	Start()
	Stop()
	Refresh(ctx context.Context) (*Snapshot, error)
	Snapshot() *Snapshot
}

// Loader runs one full fetch and normalize pass.
type Loader interface {
	Load(ctx context.Context) (*feed.FeedResult, error)
}
