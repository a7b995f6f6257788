package trigger

import (
	"context"
)

// Trigger starts background work when its condition is met.
type Trigger interface {
	Listen(ctx context.Context)
	Fire(ctx context.Context) error
	Name() string
}
