package mq

import "context"

// MessageQueue hands messages to an external consumer. The Post exit mode
// uses it to reach the publish collaborator.
type MessageQueue interface {
	Send(ctx context.Context, body string) error
}
