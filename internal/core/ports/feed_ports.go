package ports

import (
	"context"

	"github.com/classvote/api/internal/core/domain"
)

type ChangeNotifier interface {
	Notify(ctx context.Context, change domain.Change) error
}

// ChangeFeed delivers changes written by any instance. The returned channel
// is closed when ctx is done.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan domain.Change, error)
}
