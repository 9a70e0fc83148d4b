package results

import "context"

// Repo persists one Document per user. Put replaces any existing document wholesale.
type Repo interface {
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, userID string) (Document, error)
}
