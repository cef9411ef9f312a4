package port

import "context"

// StatusPublisher broadcasts segment status transitions. Publishing is
// fire-and-forget; failures never affect core transitions.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}
