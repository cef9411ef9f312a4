package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type SegmentStatus string

const (
	StatusIdle        SegmentStatus = "idle"
	StatusExtracting  SegmentStatus = "extracting"
	StatusFramesReady SegmentStatus = "frames_ready"
	StatusGenerating  SegmentStatus = "generating"
	StatusDone        SegmentStatus = "done"
	StatusError       SegmentStatus = "error"
)

var (
	ErrNoFrames            = errors.New("segment has no frames")
	ErrFrameNotFound       = errors.New("frame not in segment")
	ErrSelectionIncomplete = errors.New("selection incomplete")
	ErrWrongStatus         = errors.New("operation not allowed in current status")
)

// Segment is the aggregate root: a user-marked time window of the source
// video plus its derived frames, selection and generated artifacts. All
// mutations go through the Mark-style methods below so status transitions
// stay in one place.
type Segment struct {
	ID             uuid.UUID
	TimeRange      TimeRange
	Frames         []Frame
	Selection      FrameRange
	GifDescription string
	Status         SegmentStatus
	GifKey         string
	GifURL         string
	Error          string
	// Generation increases on every extraction or generation start; async
	// results carrying an older token are discarded on arrival.
	Generation uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewSegment(tr TimeRange) *Segment {
	now := time.Now().UTC()
	return &Segment{
		ID:        uuid.New(),
		TimeRange: tr,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetTimeRange replaces the time window. Invalid ranges are rejected with
// no state change.
func (s *Segment) SetTimeRange(tr TimeRange, videoDuration float64) error {
	if err := tr.Validate(videoDuration); err != nil {
		return err
	}
	s.TimeRange = tr
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// BeginExtraction performs the full reset that precedes any extraction:
// frames, selection, description, error and the GIF handle are all cleared
// and the generation token is bumped so in-flight work from the previous
// epoch is discarded on arrival. It returns the superseded GIF key, if any,
// so the caller can release the stored artifact. Allowed from any status;
// the time range guard lives with the caller, which knows the video bounds.
func (s *Segment) BeginExtraction() (staleGifKey string) {
	staleGifKey = s.GifKey
	s.Frames = nil
	s.Selection = FrameRange{}
	s.GifDescription = ""
	s.GifKey = ""
	s.GifURL = ""
	s.Error = ""
	s.Status = StatusExtracting
	s.Generation++
	s.UpdatedAt = time.Now().UTC()
	return staleGifKey
}

// CompleteExtraction replaces the frame sequence wholesale.
func (s *Segment) CompleteExtraction(frames []Frame) {
	s.Frames = frames
	s.Selection = FrameRange{}
	s.Status = StatusFramesReady
	s.UpdatedAt = time.Now().UTC()
}

func (s *Segment) FailExtraction(errMsg string) {
	s.Status = StatusError
	s.Error = errMsg
	s.UpdatedAt = time.Now().UTC()
}

// SelectFrame applies the two-click range picker:
//   - no anchor yet: the click becomes the anchor
//   - anchor set: the pair is stored normalized so Start resolves to the
//     lower index and End to the higher, whatever the click order
//   - pair already set: a fresh selection starts from the click
func (s *Segment) SelectFrame(id uuid.UUID) error {
	switch s.Status {
	case StatusFramesReady, StatusDone, StatusError:
	default:
		return ErrWrongStatus
	}
	if len(s.Frames) == 0 {
		return ErrNoFrames
	}
	idx := frameIndex(s.Frames, id)
	if idx < 0 {
		return ErrFrameNotFound
	}

	switch {
	case s.Selection.Start == nil:
		s.Selection.Start = &id
	case s.Selection.End == nil:
		anchorIdx := frameIndex(s.Frames, *s.Selection.Start)
		if idx < anchorIdx {
			end := *s.Selection.Start
			s.Selection.Start = &id
			s.Selection.End = &end
		} else {
			s.Selection.End = &id
		}
	default:
		s.Selection = FrameRange{Start: &id}
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ResolvedSelection returns the inclusive index span of the selection,
// lower index first regardless of selection order.
func (s *Segment) ResolvedSelection() (lo, hi int, ok bool) {
	if !s.Selection.Complete() {
		return 0, 0, false
	}
	lo = frameIndex(s.Frames, *s.Selection.Start)
	hi = frameIndex(s.Frames, *s.Selection.End)
	if lo < 0 || hi < 0 {
		return 0, 0, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// SelectedFrames is the export sub-sequence: the inclusive span between the
// selection's lower and higher index.
func (s *Segment) SelectedFrames() []Frame {
	lo, hi, ok := s.ResolvedSelection()
	if !ok {
		return nil
	}
	return s.Frames[lo : hi+1]
}

// BeginGeneration guards the frames_ready -> generating transition: it
// requires a complete selection and clears any stale GIF handle and error.
// Returns the superseded GIF key for release.
func (s *Segment) BeginGeneration() (staleGifKey string, err error) {
	if s.Status != StatusFramesReady {
		return "", ErrWrongStatus
	}
	if !s.Selection.Complete() {
		return "", ErrSelectionIncomplete
	}
	staleGifKey = s.GifKey
	s.GifKey = ""
	s.GifURL = ""
	s.Error = ""
	s.Status = StatusGenerating
	s.Generation++
	s.UpdatedAt = time.Now().UTC()
	return staleGifKey, nil
}

func (s *Segment) CompleteGeneration(gifKey, gifURL, description string) {
	s.GifKey = gifKey
	s.GifURL = gifURL
	s.GifDescription = description
	s.Status = StatusDone
	s.UpdatedAt = time.Now().UTC()
}

// FailGeneration moves the segment to error and drops whatever the
// concurrently running counterpart may still produce.
func (s *Segment) FailGeneration(errMsg string) {
	s.GifKey = ""
	s.GifURL = ""
	s.GifDescription = ""
	s.Status = StatusError
	s.Error = errMsg
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a value snapshot safe to hand to observers. Frame image
// bytes are shared; frames are immutable once extracted.
func (s *Segment) Clone() Segment {
	out := *s
	out.Frames = append([]Frame(nil), s.Frames...)
	if s.Selection.Start != nil {
		start := *s.Selection.Start
		out.Selection.Start = &start
	}
	if s.Selection.End != nil {
		end := *s.Selection.End
		out.Selection.End = &end
	}
	return out
}
