package tasks

import (
	"time"

	"github.com/lysyi3m/kingsfeeds/app/feed"
)

// Snapshot is an immutable view of the refresher state. Result is the last
// successful result and survives later failures.
type Snapshot struct {
	Result      *feed.FeedResult
	FetchedAt   time.Time // last success
	AttemptedAt time.Time // last attempt, successful or not
	LastError   error
	Generation  uint64
}

// Stale reports whether the latest attempt failed while an older result is kept.
func (s *Snapshot) Stale() bool {
	return s != nil && s.Result != nil && s.LastError != nil
}

func (s *Snapshot) HasResult() bool {
	return s != nil && s.Result != nil
}

func (s *Snapshot) withSuccess(result *feed.FeedResult, at time.Time) *Snapshot {
	return &Snapshot{
		Result:      result,
		FetchedAt:   at,
		AttemptedAt: at,
		Generation:  s.nextGeneration(),
	}
}

func (s *Snapshot) withFailure(err error, at time.Time) *Snapshot {
	next := &Snapshot{
		AttemptedAt: at,
		LastError:   err,
		Generation:  s.nextGeneration(),
	}
	if s != nil {
		next.Result = s.Result
		next.FetchedAt = s.FetchedAt
	}
	return next
}

func (s *Snapshot) nextGeneration() uint64 {
	if s == nil {
		return 1
	}
	return s.Generation + 1
}
