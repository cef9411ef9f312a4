package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
	"github.com/gifsmith/gifsmith/internal/domain/port"
)

// Extractor samples frames by seeking ffmpeg to each timestamp on the
// sampling grid and capturing exactly one frame at native resolution as a
// JPEG. The seek fully settles (the process exits) before the sample is
// taken, so frames always land on the requested timestamps.
type Extractor struct {
	quality int
	logger  *zap.Logger
}

func NewExtractor(quality int, logger *zap.Logger) *Extractor {
	return &Extractor{quality: quality, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, tr entity.TimeRange, rate float64) ([]entity.Frame, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not accessible at %q: %w", videoPath, err)
	}

	timestamps := entity.SampleTimestamps(tr.Start, tr.End, rate)
	frames := make([]entity.Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		data, err := e.captureFrame(ctx, videoPath, ts)
		if err != nil {
			return nil, fmt.Errorf("capture frame at %.3fs: %w", ts, err)
		}
		frames = append(frames, entity.Frame{
			ID:               uuid.New(),
			TimestampSeconds: ts,
			Image:            data,
		})
	}

	e.logger.Info("frames extracted",
		zap.Int("count", len(frames)),
		zap.Float64("start", tr.Start),
		zap.Float64("end", tr.End),
		zap.Float64("rate", rate),
	)
	return frames, nil
}

func (e *Extractor) captureFrame(ctx context.Context, videoPath string, ts float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(e.quality),
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w, output: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("no frame data at timestamp %.3fs", ts)
	}
	return stdout.Bytes(), nil
}

// Probe reports duration and native resolution via ffprobe.
func (e *Extractor) Probe(ctx context.Context, videoPath string) (port.VideoInfo, error) {
	info := port.VideoInfo{}

	out, err := runFFprobe(ctx,
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return info, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return info, fmt.Errorf("parse duration %q: %w", out, err)
	}
	info.DurationSeconds = duration

	out, err = runFFprobe(ctx,
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0",
		videoPath,
	)
	if err != nil {
		return info, err
	}
	parts := strings.Split(strings.TrimSpace(out), ",")
	if len(parts) != 2 {
		return info, fmt.Errorf("unexpected ffprobe resolution output %q", out)
	}
	if info.Width, err = strconv.Atoi(parts[0]); err != nil {
		return info, fmt.Errorf("parse width: %w", err)
	}
	if info.Height, err = strconv.Atoi(parts[1]); err != nil {
		return info, fmt.Errorf("parse height: %w", err)
	}
	return info, nil
}

func runFFprobe(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-v", "error"}, args...)
	cmd := exec.CommandContext(ctx, "ffprobe", full...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffprobe: %w", err)
	}
	return string(out), nil
}
