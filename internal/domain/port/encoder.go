package port

import (
	"context"
	"time"
)

// AnimationEncoder turns an ordered list of still-image byte buffers into a
// single animated GIF byte stream. Frame order is preserved exactly; any
// decode failure rejects the whole operation.
type AnimationEncoder interface {
	Encode(ctx context.Context, images [][]byte, frameDelay time.Duration) ([]byte, error)
}
