package ffmpeg

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
)

// FrameArchiver packs a segment's frames into a ZIP stream, one JPEG per
// frame, named by position so the archive preserves timestamp order.
type FrameArchiver struct{}

func NewFrameArchiver() *FrameArchiver {
	return &FrameArchiver{}
}

func (a *FrameArchiver) ArchiveFrames(ctx context.Context, frames []entity.Frame, w io.Writer) error {
	zw := zip.NewWriter(w)

	for i, frame := range frames {
		select {
		case <-ctx.Done():
			zw.Close()
			return ctx.Err()
		default:
		}

		name := fmt.Sprintf("frame_%04d_%.3fs.jpg", i+1, frame.TimestampSeconds)
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := fw.Write(frame.Image); err != nil {
			zw.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return zw.Close()
}
