package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tessera/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Dispatches are logged at debug
// level, segment transitions at info, failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			logger.DebugContext(ctx, "dispatch",
				"action", e.ActionType,
				"changed", e.Changed,
				"duration", e.Duration,
			)
		},
		OnSegmentLoading: func(ctx context.Context, e *domain.SegmentEvent) {
			logger.InfoContext(ctx, "segment_loading", "segment_id", e.SegmentID)
		},
		OnSegmentLoaded: func(ctx context.Context, e *domain.SegmentEvent) {
			logger.InfoContext(ctx, "segment_loaded",
				"segment_id", e.SegmentID,
				"duration", e.Duration,
			)
		},
		OnSegmentFailed: func(ctx context.Context, e *domain.SegmentEvent) {
			logger.WarnContext(ctx, "segment_failed",
				"segment_id", e.SegmentID,
				"err", e.Err,
			)
		},
	}
}
