package port

import (
	"context"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
)

// VideoInfo is what probing the source reports: duration for time range
// bounds, native resolution for the capture surface.
type VideoInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
}

type VideoProber interface {
	Probe(ctx context.Context, videoPath string) (VideoInfo, error)
}

// FrameExtractor samples frames at a fixed rate within a time window.
// Timestamps are start + k/rate while they stay <= end; frames come back in
// timestamp order.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, tr entity.TimeRange, rate float64) ([]entity.Frame, error)
}
