package ffmpeg

import (
	"archive/zip"
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
)

// testVideo renders a 2s synthetic clip with ffmpeg's testsrc generator.
func testVideo(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=30",
		"-pix_fmt", "yuv420p",
		path,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "generate test clip: %s", out)
	return path
}

func TestProbe(t *testing.T) {
	path := testVideo(t)
	ex := NewExtractor(4, zap.NewNop())

	info, err := ex.Probe(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, info.DurationSeconds, 0.2)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
}

func TestProbeMissingFile(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	ex := NewExtractor(4, zap.NewNop())
	_, err := ex.Probe(context.Background(), "/nonexistent/clip.mp4")
	assert.Error(t, err)
}

func TestExtractFrames(t *testing.T) {
	path := testVideo(t)
	ex := NewExtractor(4, zap.NewNop())

	frames, err := ex.ExtractFrames(context.Background(), path, entity.TimeRange{Start: 0, End: 1}, 10)
	require.NoError(t, err)
	require.Len(t, frames, 11)

	for i, f := range frames {
		assert.NotEqual(t, uuid.Nil, f.ID)
		assert.InDelta(t, float64(i)/10, f.TimestampSeconds, 1e-9)
		require.GreaterOrEqual(t, len(f.Image), 2, "frame %d is empty", i)
		assert.Equal(t, []byte{0xff, 0xd8}, f.Image[:2], "frame %d is not a JPEG", i)
	}
}

func TestExtractFramesMissingFile(t *testing.T) {
	ex := NewExtractor(4, zap.NewNop())
	_, err := ex.ExtractFrames(context.Background(), "/nonexistent/clip.mp4", entity.TimeRange{Start: 0, End: 1}, 10)
	assert.Error(t, err)
}

func TestArchiveFrames(t *testing.T) {
	frames := []entity.Frame{
		{ID: uuid.New(), TimestampSeconds: 0, Image: []byte{0xff, 0xd8, 0x01}},
		{ID: uuid.New(), TimestampSeconds: 0.1, Image: []byte{0xff, 0xd8, 0x02}},
	}

	var buf bytes.Buffer
	arch := NewFrameArchiver()
	require.NoError(t, arch.ArchiveFrames(context.Background(), frames, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "frame_0001_0.000s.jpg", zr.File[0].Name)
	assert.Equal(t, "frame_0002_0.100s.jpg", zr.File[1].Name)
}

func TestArchiveFramesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := []entity.Frame{{ID: uuid.New(), Image: []byte{0xff, 0xd8}}}
	var buf bytes.Buffer
	err := NewFrameArchiver().ArchiveFrames(ctx, frames, &buf)
	assert.Error(t, err)
}
