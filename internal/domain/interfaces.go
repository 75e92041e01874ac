package domain

import (
	"context"
)

// ActivityRepository persists activity entries beyond the in-memory log.
type ActivityRepository interface {
	Append(ctx context.Context, entries ...ActivityEntry) error
	Recent(ctx context.Context, limit int) ([]ActivityEntry, error)
}
