package metrics

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/bizbilling/internal/invoicing"
)

// Invalidator bumps the dashboard cache of the business behind every ledger event.
type Invalidator struct {
	cache *Cache
}

// NewInvalidator returns a publisher that invalidates cache.
func NewInvalidator(cache *Cache) *Invalidator {
	return &Invalidator{cache: cache}
}

// Publish implements invoicing.Publisher.
func (i *Invalidator) Publish(ctx context.Context, event invoicing.Event) error {
	if err := i.cache.Bump(ctx, event.BusinessID); err != nil {
		return fmt.Errorf("metrics: invalidate %s: %w", event.BusinessID, err)
	}
	return nil
}

var _ invoicing.Publisher = (*Invalidator)(nil)
