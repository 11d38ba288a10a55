package solana

import "context"

// PubsubClient defines the Solana WebSocket subscription surface this
// service uses for cheap activity hints: a logsSubscribe stream filtered to
// transactions mentioning a mint. The live controller treats each
// notification as "something touched this mint", nothing more.
type PubsubClient interface {
	// SubscribeMentions subscribes to logs of transactions mentioning the
	// given address.
	SubscribeMentions(ctx context.Context, address string) (<-chan LogNotification, error)

	// Close closes the WebSocket connection and all subscriptions.
	Close() error
}

// LogNotification is one logsSubscribe message.
type LogNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}
