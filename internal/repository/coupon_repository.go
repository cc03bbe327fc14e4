package repository

import (
	"context"
	"coupon-manager/internal/model"
)

// CouponRepository defines the interface for coupon data operations.
// The collection is ordered: List returns coupons in insertion order.
type CouponRepository interface {
	// Append adds a coupon at the end of the collection.
	// Returns an already-exists error if the id is taken.
	Append(ctx context.Context, coupon *model.Coupon) error

	// Get retrieves a coupon by id
	Get(ctx context.Context, id string) (*model.Coupon, error)

	// Modify applies fn to the stored coupon atomically and returns the result.
	// fn must not change the coupon's ID.
	Modify(ctx context.Context, id string, fn func(*model.Coupon)) (*model.Coupon, error)

	// List returns the coupons matching filter, in collection order
	List(ctx context.Context, filter model.CouponFilter) ([]*model.Coupon, error)

	// ReplaceAll swaps the whole collection for coupons
	ReplaceAll(ctx context.Context, coupons []*model.Coupon) error

	// Count returns the number of coupons matching filter
	Count(ctx context.Context, filter model.CouponFilter) (int, error)
}
