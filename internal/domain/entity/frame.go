package entity

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

// Frame is a single sampled still image. Frames are immutable and owned
// exclusively by their parent segment.
type Frame struct {
	ID               uuid.UUID `json:"id"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	Image            []byte    `json:"-"`
}

// TimeRange is a window into the source video, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Validate rejects ranges that are inverted, negative, or outside the
// video. Invalid ranges are rejected, never clamped.
func (tr TimeRange) Validate(videoDuration float64) error {
	if tr.Start < 0 || tr.End <= tr.Start || tr.End > videoDuration {
		return ErrInvalidTimeRange
	}
	return nil
}

// FrameRange is a two-click selection over a segment's frame sequence.
// When both ends are set they denote an inclusive span resolved by index,
// independent of click order.
type FrameRange struct {
	Start *uuid.UUID `json:"start,omitempty"`
	End   *uuid.UUID `json:"end,omitempty"`
}

func (fr FrameRange) Complete() bool {
	return fr.Start != nil && fr.End != nil
}

// SampleTimestamps returns the sampling grid for a time window: start + k/rate
// for k = 0, 1, ... while the timestamp stays <= end. An empty window yields
// no timestamps.
func SampleTimestamps(start, end, rate float64) []float64 {
	if end <= start || rate <= 0 {
		return nil
	}
	n := int(math.Floor((end-start)*rate+1e-9)) + 1
	ts := make([]float64, n)
	for k := 0; k < n; k++ {
		ts[k] = start + float64(k)/rate
	}
	return ts
}

// FrameDisplayState classifies a frame for presentation purposes only.
type FrameDisplayState int

const (
	FrameUnselected FrameDisplayState = iota
	FrameAnchor
	FrameInSpan
)

// ClassifyFrame maps (selection, frames, frame id) to a display state.
// Pure function; the inclusive min/max-index rule here is the same one the
// encoder uses to derive the export sub-sequence.
func ClassifyFrame(sel FrameRange, frames []Frame, id uuid.UUID) FrameDisplayState {
	idx := frameIndex(frames, id)
	if idx < 0 {
		return FrameUnselected
	}
	if sel.Complete() {
		lo := frameIndex(frames, *sel.Start)
		hi := frameIndex(frames, *sel.End)
		if lo < 0 || hi < 0 {
			return FrameUnselected
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if idx >= lo && idx <= hi {
			return FrameInSpan
		}
		return FrameUnselected
	}
	if sel.Start != nil && *sel.Start == id {
		return FrameAnchor
	}
	return FrameUnselected
}

func frameIndex(frames []Frame, id uuid.UUID) int {
	for i, f := range frames {
		if f.ID == id {
			return i
		}
	}
	return -1
}
