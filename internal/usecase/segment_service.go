package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
	"github.com/gifsmith/gifsmith/internal/domain/port"
	"github.com/gifsmith/gifsmith/internal/infra/metrics"
)

var (
	ErrNoVideo          = errors.New("no video registered")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrUnsupportedMedia = errors.New("media type not supported")
	ErrNoArtifact       = errors.New("segment has no encoded artifact")
)

// Video is the registered source for the session.
type Video struct {
	Path            string
	DurationSeconds float64
	Width           int
	Height          int
}

// SegmentService owns the segment lifecycle state machine. Every mutation
// reads the current segment, computes the next value and replaces it
// wholesale under one lock, so observers only ever see whole Segment
// snapshots. Async stage results carry the generation token they started
// with and are discarded if the segment has moved on.
type SegmentService struct {
	extractor port.FrameExtractor
	prober    port.VideoProber
	encoder   port.AnimationEncoder
	captioner port.CaptionGenerator
	artifacts port.ArtifactStore
	publisher port.StatusPublisher
	logger    *zap.Logger
	rate      float64

	mu       sync.RWMutex
	video    *Video
	segments map[uuid.UUID]*entity.Segment
	order    []uuid.UUID
}

type Config struct {
	// SampleRate is the fixed extraction rate in frames per second.
	SampleRate float64
}

func NewSegmentService(
	extractor port.FrameExtractor,
	prober port.VideoProber,
	encoder port.AnimationEncoder,
	captioner port.CaptionGenerator,
	artifacts port.ArtifactStore,
	publisher port.StatusPublisher,
	logger *zap.Logger,
	cfg Config,
) *SegmentService {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 10
	}
	return &SegmentService{
		extractor: extractor,
		prober:    prober,
		encoder:   encoder,
		captioner: captioner,
		artifacts: artifacts,
		publisher: publisher,
		logger:    logger,
		rate:      rate,
		segments:  make(map[uuid.UUID]*entity.Segment),
	}
}

// RegisterVideo probes and registers the session's source video. Non-video
// media is rejected. Registering a new source discards all segments from
// the previous one and releases their artifacts.
func (s *SegmentService) RegisterVideo(ctx context.Context, path, mimeType string) (Video, error) {
	if !strings.HasPrefix(mimeType, "video/") {
		return Video{}, ErrUnsupportedMedia
	}

	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return Video{}, fmt.Errorf("probe video: %w", err)
	}

	video := Video{
		Path:            path,
		DurationSeconds: info.DurationSeconds,
		Width:           info.Width,
		Height:          info.Height,
	}

	s.mu.Lock()
	var staleKeys []string
	for _, seg := range s.segments {
		if seg.GifKey != "" {
			staleKeys = append(staleKeys, seg.GifKey)
		}
	}
	stalePath := ""
	if s.video != nil && s.video.Path != path {
		stalePath = s.video.Path
	}
	s.segments = make(map[uuid.UUID]*entity.Segment)
	s.order = nil
	s.video = &video
	s.mu.Unlock()

	for _, key := range staleKeys {
		s.releaseArtifact(key)
	}
	if stalePath != "" {
		if err := os.Remove(stalePath); err != nil {
			s.logger.Debug("failed to remove superseded source file",
				zap.String("path", stalePath),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("video registered",
		zap.String("path", path),
		zap.Float64("duration", video.DurationSeconds),
		zap.Int("width", video.Width),
		zap.Int("height", video.Height),
	)
	return video, nil
}

func (s *SegmentService) CreateSegment(tr entity.TimeRange) (entity.Segment, error) {
	s.mu.Lock()
	if s.video == nil {
		s.mu.Unlock()
		return entity.Segment{}, ErrNoVideo
	}
	if err := tr.Validate(s.video.DurationSeconds); err != nil {
		s.mu.Unlock()
		return entity.Segment{}, err
	}
	seg := entity.NewSegment(tr)
	s.segments[seg.ID] = seg
	s.order = append(s.order, seg.ID)
	snap := seg.Clone()
	s.mu.Unlock()

	metrics.SegmentsCreatedTotal.Inc()
	s.publishStatus(snap)
	return snap, nil
}

// UpdateTimeRange applies a time range edit. Invalid ranges are rejected
// synchronously with no state change and no surfaced error.
func (s *SegmentService) UpdateTimeRange(id uuid.UUID, tr entity.TimeRange) (entity.Segment, error) {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return entity.Segment{}, ErrSegmentNotFound
	}
	duration := 0.0
	if s.video != nil {
		duration = s.video.DurationSeconds
	}
	if err := seg.SetTimeRange(tr, duration); err != nil {
		s.logger.Debug("time range edit rejected",
			zap.String("segment_id", id.String()),
			zap.Float64("start", tr.Start),
			zap.Float64("end", tr.End),
		)
	}
	snap := seg.Clone()
	s.mu.Unlock()
	return snap, nil
}

// ExtractFrames resets the segment and starts an asynchronous extraction.
// The returned snapshot is already in the extracting state. A previous
// extraction or generation still in flight is not cancelled; its results
// are discarded on arrival via the generation token.
func (s *SegmentService) ExtractFrames(ctx context.Context, id uuid.UUID) (entity.Segment, error) {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return entity.Segment{}, ErrSegmentNotFound
	}
	if s.video == nil {
		s.mu.Unlock()
		return entity.Segment{}, ErrNoVideo
	}
	if err := seg.TimeRange.Validate(s.video.DurationSeconds); err != nil {
		// Invalid range: rejected silently, no state change.
		snap := seg.Clone()
		s.mu.Unlock()
		return snap, nil
	}
	staleKey := seg.BeginExtraction()
	gen := seg.Generation
	videoPath := s.video.Path
	tr := seg.TimeRange
	snap := seg.Clone()
	s.mu.Unlock()

	s.releaseArtifact(staleKey)
	s.publishStatus(snap)

	go s.runExtraction(context.WithoutCancel(ctx), id, gen, videoPath, tr)
	return snap, nil
}

func (s *SegmentService) runExtraction(ctx context.Context, id uuid.UUID, gen uint64, videoPath string, tr entity.TimeRange) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "extract_frames")
	span.SetAttributes(attribute.String("segment.id", id.String()))
	defer span.End()

	start := time.Now()
	frames, err := s.extractor.ExtractFrames(ctx, videoPath, tr, s.rate)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok || seg.Generation != gen || seg.Status != entity.StatusExtracting {
		s.mu.Unlock()
		metrics.StaleResultsDiscarded.Inc()
		s.logger.Debug("discarding stale extraction result", zap.String("segment_id", id.String()))
		return
	}
	if err != nil {
		seg.FailExtraction(fmt.Sprintf("frame extraction failed: %v", err))
		snap := seg.Clone()
		s.mu.Unlock()
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		s.logger.Error("extraction failed", zap.String("segment_id", id.String()), zap.Error(err))
		s.publishStatus(snap)
		return
	}
	seg.CompleteExtraction(frames)
	snap := seg.Clone()
	s.mu.Unlock()

	metrics.ExtractionsTotal.WithLabelValues("completed").Inc()
	metrics.FramesSampledTotal.Add(float64(len(frames)))
	s.logger.Info("extraction completed",
		zap.String("segment_id", id.String()),
		zap.Int("frames", len(frames)),
	)
	s.publishStatus(snap)
}

// SelectFrame applies the two-click range picker to the segment. Clicks
// that cannot apply (no frames, unknown frame, wrong state) are ignored.
func (s *SegmentService) SelectFrame(id, frameID uuid.UUID) (entity.Segment, error) {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return entity.Segment{}, ErrSegmentNotFound
	}
	if err := seg.SelectFrame(frameID); err != nil {
		s.logger.Debug("frame selection ignored",
			zap.String("segment_id", id.String()),
			zap.String("frame_id", frameID.String()),
			zap.Error(err),
		)
	}
	snap := seg.Clone()
	s.mu.Unlock()
	return snap, nil
}

// GenerateGif launches encoding and captioning for the selected frame span.
// Both run concurrently; the segment reaches done only when both succeed,
// and the first failure wins with the other result ignored on arrival.
// With an incomplete selection or outside frames_ready this is a no-op.
func (s *SegmentService) GenerateGif(ctx context.Context, id uuid.UUID) (entity.Segment, error) {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return entity.Segment{}, ErrSegmentNotFound
	}
	staleKey, err := seg.BeginGeneration()
	if err != nil {
		// No-op by design: status unchanged.
		snap := seg.Clone()
		s.mu.Unlock()
		s.logger.Debug("generate request ignored", zap.String("segment_id", id.String()), zap.Error(err))
		return snap, nil
	}
	gen := seg.Generation
	selected := seg.SelectedFrames()
	images := make([][]byte, len(selected))
	for i, f := range selected {
		images[i] = f.Image
	}
	snap := seg.Clone()
	s.mu.Unlock()

	s.releaseArtifact(staleKey)
	s.publishStatus(snap)

	go s.runGeneration(context.WithoutCancel(ctx), id, gen, images)
	return snap, nil
}

func (s *SegmentService) runGeneration(ctx context.Context, id uuid.UUID, gen uint64, images [][]byte) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "generate_gif")
	span.SetAttributes(
		attribute.String("segment.id", id.String()),
		attribute.Int("frames", len(images)),
	)
	defer span.End()

	metrics.ActiveGenerations.Inc()
	defer metrics.ActiveGenerations.Dec()

	frameDelay := time.Duration(float64(time.Second) / s.rate)

	type encodeResult struct {
		data []byte
		err  error
	}
	type captionResult struct {
		text string
		err  error
	}
	encodeCh := make(chan encodeResult, 1)
	captionCh := make(chan captionResult, 1)

	go func() {
		start := time.Now()
		data, err := s.encoder.Encode(ctx, images, frameDelay)
		metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
		encodeCh <- encodeResult{data: data, err: err}
	}()
	go func() {
		start := time.Now()
		text, err := s.captioner.Describe(ctx, images)
		metrics.StageDuration.WithLabelValues("caption").Observe(time.Since(start).Seconds())
		captionCh <- captionResult{text: text, err: err}
	}()

	// Join: the first failure moves the segment to error immediately; the
	// still-running counterpart is not cancelled and its eventual result is
	// simply dropped by the status/generation check in the apply helpers.
	var (
		gifData     []byte
		description string
		haveGif     bool
		haveCaption bool
		failed      bool
	)
	for i := 0; i < 2; i++ {
		select {
		case res := <-encodeCh:
			if res.err != nil {
				if !failed {
					failed = true
					s.failGeneration(id, gen, fmt.Sprintf("animation encoding failed: %v", res.err))
				}
				continue
			}
			gifData, haveGif = res.data, true
		case res := <-captionCh:
			if res.err != nil {
				if !failed {
					failed = true
					s.failGeneration(id, gen, res.err.Error())
				}
				continue
			}
			description, haveCaption = res.text, true
		}
	}
	if failed || !haveGif || !haveCaption {
		return
	}

	// The key carries the generation token, so a superseded generation that
	// lands late writes and then removes its own object, never the one the
	// segment currently points at. The download filename stays deterministic
	// at the API layer regardless of the key.
	key := fmt.Sprintf("gifs/video-to-gif-%s-%d.gif", id, gen)
	url, err := s.artifacts.PutGIF(ctx, key, gifData)
	if err != nil {
		s.failGeneration(id, gen, fmt.Sprintf("storing animation failed: %v", err))
		return
	}

	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok || seg.Generation != gen || seg.Status != entity.StatusGenerating {
		s.mu.Unlock()
		metrics.StaleResultsDiscarded.Inc()
		s.releaseArtifact(key)
		return
	}
	seg.CompleteGeneration(key, url, description)
	snap := seg.Clone()
	s.mu.Unlock()

	metrics.GenerationsTotal.WithLabelValues("done").Inc()
	s.logger.Info("generation completed",
		zap.String("segment_id", id.String()),
		zap.Int("gif_bytes", len(gifData)),
	)
	s.publishStatus(snap)
}

func (s *SegmentService) failGeneration(id uuid.UUID, gen uint64, msg string) {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok || seg.Generation != gen || seg.Status != entity.StatusGenerating {
		s.mu.Unlock()
		metrics.StaleResultsDiscarded.Inc()
		return
	}
	seg.FailGeneration(msg)
	snap := seg.Clone()
	s.mu.Unlock()

	metrics.GenerationsTotal.WithLabelValues("error").Inc()
	s.logger.Warn("generation failed",
		zap.String("segment_id", id.String()),
		zap.String("error", msg),
	)
	s.publishStatus(snap)
}

// Segment returns a snapshot of one segment.
func (s *SegmentService) Segment(id uuid.UUID) (entity.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[id]
	if !ok {
		return entity.Segment{}, ErrSegmentNotFound
	}
	return seg.Clone(), nil
}

// Segments returns snapshots in creation order.
func (s *SegmentService) Segments() []entity.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Segment, 0, len(s.order))
	for _, id := range s.order {
		if seg, ok := s.segments[id]; ok {
			out = append(out, seg.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RemoveSegment discards a segment and releases its artifact.
func (s *SegmentService) RemoveSegment(id uuid.UUID) error {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return ErrSegmentNotFound
	}
	staleKey := seg.GifKey
	delete(s.segments, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.releaseArtifact(staleKey)
	return nil
}

// VideoInfo returns the registered source, if any.
func (s *SegmentService) VideoInfo() (Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.video == nil {
		return Video{}, false
	}
	return *s.video, true
}

// OpenGif streams a segment's encoded artifact from the store.
func (s *SegmentService) OpenGif(ctx context.Context, id uuid.UUID) (io.ReadCloser, int64, error) {
	s.mu.RLock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.RUnlock()
		return nil, 0, ErrSegmentNotFound
	}
	key := seg.GifKey
	s.mu.RUnlock()

	if key == "" {
		return nil, 0, ErrNoArtifact
	}
	return s.artifacts.FetchGIF(ctx, key)
}

func (s *SegmentService) releaseArtifact(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.artifacts.Remove(ctx, key); err != nil {
		s.logger.Warn("failed to release artifact", zap.String("key", key), zap.Error(err))
	}
}

func (s *SegmentService) publishStatus(seg entity.Segment) {
	data, err := json.Marshal(entity.StatusMessageFor(seg))
	if err != nil {
		s.logger.Error("marshal status message", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishStatus(ctx, data); err != nil {
		s.logger.Warn("failed to publish status",
			zap.String("segment_id", seg.ID.String()),
			zap.Error(err),
		)
	}
}
