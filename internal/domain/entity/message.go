package entity

import (
	"time"

	"github.com/google/uuid"
)

// SegmentStatusMessage is published on every segment status transition.
type SegmentStatusMessage struct {
	SegmentID      uuid.UUID     `json:"segment_id"`
	Status         SegmentStatus `json:"status"`
	TimeRange      TimeRange     `json:"time_range"`
	FrameCount     int           `json:"frame_count,omitempty"`
	GifKey         string        `json:"gif_key,omitempty"`
	GifURL         string        `json:"gif_url,omitempty"`
	GifDescription string        `json:"gif_description,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Generation     uint64        `json:"generation"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// StatusMessageFor builds the outbound event for a segment snapshot.
func StatusMessageFor(s Segment) SegmentStatusMessage {
	return SegmentStatusMessage{
		SegmentID:      s.ID,
		Status:         s.Status,
		TimeRange:      s.TimeRange,
		FrameCount:     len(s.Frames),
		GifKey:         s.GifKey,
		GifURL:         s.GifURL,
		GifDescription: s.GifDescription,
		ErrorMessage:   s.Error,
		Generation:     s.Generation,
		UpdatedAt:      s.UpdatedAt,
	}
}
