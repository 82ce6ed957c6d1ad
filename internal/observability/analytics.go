package observability

import (
	"context"

	"go.uber.org/zap"
)

// PageViewTracker records page views as a prometheus counter and a debug log line.
// It never fails; tracking is fire-and-forget.
type PageViewTracker struct {
	logger *zap.Logger
}

// NewPageViewTracker returns a tracker. logger may be nil.
func NewPageViewTracker(logger *zap.Logger) *PageViewTracker {
	return &PageViewTracker{logger: logger}
}

// TrackView records one view of path.
func (t *PageViewTracker) TrackView(ctx context.Context, path string) {
	PageViewsTotal.WithLabelValues(path).Inc()
	if t.logger != nil {
		t.logger.Debug("page view", zap.String("path", path))
	}
}
