package port

import "context"

// CaptionGenerator returns descriptive text for an ordered list of still
// images via a remote inference call.
type CaptionGenerator interface {
	Describe(ctx context.Context, images [][]byte) (string, error)
}
