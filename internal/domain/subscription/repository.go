package subscription

import "context"

// Repository mirrors the in-memory subscription set to durable storage.
// Every mutation persists the full set synchronously (the persisted shape
// is a whole-registry overwrite), so a crash can leave in-memory and
// durable copies divergent for at most one operation.
type Repository interface {
	// Load reads the full persisted subscription set. A missing backing
	// store yields an empty set, not an error.
	Load(ctx context.Context) ([]Subscription, error)

	// Save overwrites the persisted set with the given one.
	Save(ctx context.Context, subs []Subscription) error
}
