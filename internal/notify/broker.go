// Package notify fans out sale status changes: a live-update channel keyed
// by user, and an optional operator webhook. Both are best-effort and never
// affect the processing outcome.
package notify

import "context"

// Broker is a fire-and-forget pub/sub channel. Subscribers that are not
// listening at publish time simply miss the event; there is no backlog.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a message stream and a cancel func that must be
	// called to drop the subscription.
	Subscribe(ctx context.Context, channel string) (<-chan string, func(), error)
}

// UpdatesChannel names the per-user live-update channel.
func UpdatesChannel(userID string) string {
	return "sale:updates:" + userID
}
