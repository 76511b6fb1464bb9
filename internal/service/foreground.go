package service

import (
	"context"
	"time"
)

// ResumedEvent is an "activity resumed" signal from the shell's
// accessibility feed.
type ResumedEvent struct {
	PackageID string
	At        time.Time
}

// EventSource streams resumed events; UsageSource is the coarser
// usage-statistics fallback. Either may be the only one available.
type EventSource interface {
	LatestResumed(ctx context.Context) (*ResumedEvent, error)
}

type UsageSource interface {
	RecentPackage(ctx context.Context, window time.Duration) (string, error)
}

// reconcilingSource prefers the most recent resumed event within the
// look-back window and falls back to the usage-statistics query.
type reconcilingSource struct {
	events   EventSource
	usage    UsageSource
	lookback time.Duration
	now      func() time.Time
}

func NewReconcilingSource(events EventSource, usage UsageSource, lookback time.Duration) ForegroundSource {
	return &reconcilingSource{
		events:   events,
		usage:    usage,
		lookback: lookback,
		now:      time.Now,
	}
}

func (s *reconcilingSource) CurrentApp(ctx context.Context) (string, error) {
	if s.events != nil {
		ev, err := s.events.LatestResumed(ctx)
		if err == nil && ev != nil && s.now().Sub(ev.At) <= s.lookback {
			return ev.PackageID, nil
		}
	}

	if s.usage == nil {
		return "", nil
	}
	return s.usage.RecentPackage(ctx, s.lookback)
}
