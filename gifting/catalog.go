package gifting

import (
	"context"
	"fmt"
	"sync"
)

// GiftLister is the slice of the remote gift service the catalog needs.
type GiftLister interface {
	ListGifts(ctx context.Context) ([]GiftItem, error)
}

// Catalog holds the authoritative local copy of the gift list. Refreshes
// replace the whole list at once, so readers see either the old list or the
// new one, never a mix.
type Catalog struct {
	lister GiftLister

	mu    sync.RWMutex
	gifts []GiftItem
}

func NewCatalog(lister GiftLister) *Catalog {
	return &Catalog{lister: lister}
}

// Refresh fetches the full gift list and swaps it in atomically. On failure
// the previous list stays intact.
func (c *Catalog) Refresh(ctx context.Context) error {
	gifts, err := c.lister.ListGifts(ctx)
	if err != nil {
		return fmt.Errorf("refreshing gift catalog: %w", err)
	}

	c.mu.Lock()
	c.gifts = gifts
	c.mu.Unlock()

	return nil
}

// Gifts returns a snapshot copy of the current list.
func (c *Catalog) Gifts() []GiftItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]GiftItem, len(c.gifts))
	copy(out, c.gifts)
	return out
}

func (c *Catalog) Gift(id string) (GiftItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, gift := range c.gifts {
		if gift.ID == id {
			return gift, true
		}
	}

	return GiftItem{}, false
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.gifts)
}

// ApplyContribution patches one gift's funding totals after a confirmed
// contribution. The patch is provisional until the next refresh reconciles
// with server state. Calling it twice for the same contribution double
// counts; callers apply it at most once per confirmed transaction.
func (c *Catalog) ApplyContribution(giftID string, amountMinor int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.gifts {
		if c.gifts[i].ID != giftID {
			continue
		}

		gift := &c.gifts[i]
		gift.RaisedAmount += amountMinor

		progress := float64(gift.RaisedAmount) / float64(gift.Amount) * 100
		if progress > 100 {
			progress = 100
		}
		gift.Progress = progress
		gift.IsCompleted = gift.RaisedAmount >= gift.Amount

		return true
	}

	return false
}
