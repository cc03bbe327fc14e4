package repository

import (
	"context"
	"coupon-manager/internal/model"
	"sync"

	ierr "coupon-manager/pkg/errors"

	"github.com/samber/lo"
)

// memoryCouponRepository implements CouponRepository with an ordered slice
type memoryCouponRepository struct {
	mu      sync.RWMutex
	coupons []*model.Coupon
	index   map[string]int // id -> position in coupons
}

// NewCouponRepository creates a new in-memory coupon repository
func NewCouponRepository() CouponRepository {
	return &memoryCouponRepository{
		index: make(map[string]int),
	}
}

func copyCoupon(c *model.Coupon) *model.Coupon {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

func notFound(id string) error {
	return ierr.NewError("coupon not found").
		WithHint("Coupon not found").
		WithReportableDetails(map[string]any{"id": id}).
		Mark(ierr.ErrNotFound)
}

// Append adds a coupon at the end of the collection
func (r *memoryCouponRepository) Append(_ context.Context, coupon *model.Coupon) error {
	if coupon == nil || coupon.ID == "" {
		return ierr.NewError("coupon must have an id").
			WithHint("Coupon must have an id").
			Mark(ierr.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[coupon.ID]; exists {
		return ierr.NewError("coupon id already in use").
			WithHint("A coupon with this id already exists").
			WithReportableDetails(map[string]any{"id": coupon.ID}).
			Mark(ierr.ErrAlreadyExists)
	}

	r.index[coupon.ID] = len(r.coupons)
	r.coupons = append(r.coupons, copyCoupon(coupon))
	return nil
}

// Get retrieves a coupon by id
func (r *memoryCouponRepository) Get(_ context.Context, id string) (*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return nil, notFound(id)
	}
	return copyCoupon(r.coupons[pos]), nil
}

// Modify applies fn to the stored coupon while holding the write lock
func (r *memoryCouponRepository) Modify(_ context.Context, id string, fn func(*model.Coupon)) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return nil, notFound(id)
	}

	updated := copyCoupon(r.coupons[pos])
	fn(updated)
	updated.ID = id

	r.coupons[pos] = updated
	return copyCoupon(updated), nil
}

// List returns the coupons matching filter in insertion order
func (r *memoryCouponRepository) List(_ context.Context, filter model.CouponFilter) ([]*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := lo.Filter(r.coupons, func(c *model.Coupon, _ int) bool {
		return filter.Matches(c)
	})
	return lo.Map(matched, func(c *model.Coupon, _ int) *model.Coupon {
		return copyCoupon(c)
	}), nil
}

// ReplaceAll swaps the collection. Duplicate ids are rejected and leave the
// current collection untouched.
func (r *memoryCouponRepository) ReplaceAll(_ context.Context, coupons []*model.Coupon) error {
	index := make(map[string]int, len(coupons))
	replacement := make([]*model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c == nil || c.ID == "" {
			return ierr.NewError("coupon must have an id").
				WithHint("Coupon must have an id").
				Mark(ierr.ErrValidation)
		}
		if _, dup := index[c.ID]; dup {
			return ierr.NewError("duplicate coupon id").
				WithHint("A coupon with this id already exists").
				WithReportableDetails(map[string]any{"id": c.ID}).
				Mark(ierr.ErrAlreadyExists)
		}
		index[c.ID] = len(replacement)
		replacement = append(replacement, copyCoupon(c))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.coupons = replacement
	r.index = index
	return nil
}

// Count returns the number of coupons matching filter
func (r *memoryCouponRepository) Count(_ context.Context, filter model.CouponFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.CountBy(r.coupons, filter.Matches), nil
}
