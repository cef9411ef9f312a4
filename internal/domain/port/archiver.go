package port

import (
	"context"
	"io"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
)

// Archiver packs a segment's extracted frames into a single archive stream.
type Archiver interface {
	ArchiveFrames(ctx context.Context, frames []entity.Frame, w io.Writer) error
}
