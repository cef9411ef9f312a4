package api

import (
	"time"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
)

type timeRangeRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type selectFrameRequest struct {
	FrameID string `json:"frameId"`
}

type videoResponse struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
}

type frameResponse struct {
	ID               string  `json:"id"`
	TimestampSeconds float64 `json:"timestampSeconds"`
	// DisplayState is derived presentation data: unselected, anchor, span.
	DisplayState string `json:"displayState"`
}

type frameRangeResponse struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type segmentResponse struct {
	ID             string             `json:"id"`
	TimeRange      timeRangeRequest   `json:"timeRange"`
	Status         string             `json:"status"`
	Frames         []frameResponse    `json:"frames"`
	Selection      frameRangeResponse `json:"selectedFrameRange"`
	GifDescription string             `json:"gifDescription,omitempty"`
	GifURL         string             `json:"gifUrl,omitempty"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

var displayStateNames = map[entity.FrameDisplayState]string{
	entity.FrameUnselected: "unselected",
	entity.FrameAnchor:     "anchor",
	entity.FrameInSpan:     "span",
}

func toSegmentResponse(seg entity.Segment) segmentResponse {
	frames := make([]frameResponse, len(seg.Frames))
	for i, f := range seg.Frames {
		frames[i] = frameResponse{
			ID:               f.ID.String(),
			TimestampSeconds: f.TimestampSeconds,
			DisplayState:     displayStateNames[entity.ClassifyFrame(seg.Selection, seg.Frames, f.ID)],
		}
	}

	sel := frameRangeResponse{}
	if seg.Selection.Start != nil {
		sel.Start = seg.Selection.Start.String()
	}
	if seg.Selection.End != nil {
		sel.End = seg.Selection.End.String()
	}

	return segmentResponse{
		ID:             seg.ID.String(),
		TimeRange:      timeRangeRequest{Start: seg.TimeRange.Start, End: seg.TimeRange.End},
		Status:         string(seg.Status),
		Frames:         frames,
		Selection:      sel,
		GifDescription: seg.GifDescription,
		GifURL:         seg.GifURL,
		Error:          seg.Error,
		CreatedAt:      seg.CreatedAt,
		UpdatedAt:      seg.UpdatedAt,
	}
}
