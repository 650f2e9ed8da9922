package driven

import "context"

// Trigger produces candidate file paths for the upload pipeline.
//
// The stream is infinite and not restartable: Start may be called once, and a
// new Trigger must be constructed to resume after the context is cancelled.
// Paths are absolute. The channel is bounded; when the consumer falls behind
// the trigger blocks instead of dropping paths. The channel is closed after
// the context is cancelled and the trigger has released its resources.
type Trigger interface {
	Start(ctx context.Context) (<-chan string, error)
}
