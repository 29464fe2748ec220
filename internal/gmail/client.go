package gmail

import "context"

// Client is the narrow Gmail surface required by gmail-checker.
type Client interface {
	// List returns up to limit message ids matching q, in provider order.
	List(ctx context.Context, q Query, limit int) ([]MessageID, error)
	Get(ctx context.Context, id MessageID) (Message, error)
}
