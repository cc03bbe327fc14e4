// Package notice keeps the short-lived, non-blocking messages shown to the
// user after an operation ("Coupon added successfully!", "Failed to load
// coupons."). Notices expire on their own; nobody acknowledges them.
package notice

import (
	"slices"
	"strings"
	"time"

	"coupon-manager/internal/model"
	"coupon-manager/pkg/config"

	"github.com/oklog/ulid/v2"
	goCache "github.com/patrickmn/go-cache"
)

// Board stores notices until their TTL runs out
type Board struct {
	cache *goCache.Cache
	now   func() time.Time
}

// NewBoard creates a board using the configured TTL and cleanup interval.
// A cleanup interval of zero disables the background janitor; expired
// notices are then only hidden, not evicted.
func NewBoard(cfg *config.Configuration) *Board {
	return &Board{
		cache: goCache.New(cfg.Notices.TTL, cfg.Notices.CleanupInterval),
		now:   time.Now,
	}
}

// Notify posts a notice
func (b *Board) Notify(level model.NoticeLevel, message string) {
	n := &model.Notice{
		ID:        ulid.Make().String(),
		Level:     level,
		Message:   message,
		CreatedAt: b.now().UTC(),
	}
	b.cache.SetDefault(n.ID, n)
}

// List returns the live notices, oldest first
func (b *Board) List() []*model.Notice {
	items := b.cache.Items()

	notices := make([]*model.Notice, 0, len(items))
	for _, item := range items {
		if n, ok := item.Object.(*model.Notice); ok {
			copied := *n
			notices = append(notices, &copied)
		}
	}

	// ULIDs sort by creation time
	slices.SortFunc(notices, func(a, b *model.Notice) int {
		return strings.Compare(a.ID, b.ID)
	})
	return notices
}

// Flush drops every notice
func (b *Board) Flush() {
	b.cache.Flush()
}
