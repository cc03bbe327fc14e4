package model

import (
	"strings"
	"time"
)

// ExpiryDateLayout is the calendar-date format used for expiry dates
const ExpiryDateLayout = "2006-01-02"

// Coupon represents a coupon in the system
type Coupon struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	ExpiryDate  string `json:"expiry_date"` // YYYY-MM-DD
	Description string `json:"description"`
	IsDeleted   bool   `json:"is_deleted"`
	RemoteID    int    `json:"remote_id,omitempty"` // id known to the placeholder endpoint, 0 if local only
}

// Apply overwrites the mutable fields with the draft's values.
// ID, IsDeleted and RemoteID are left alone.
func (c *Coupon) Apply(d CouponDraft) {
	c.Code = d.Code
	c.ExpiryDate = d.ExpiryDate
	c.Description = d.Description
}

// CouponDraft carries the user-editable fields of a coupon
type CouponDraft struct {
	Code        string `json:"code" validate:"required"`
	ExpiryDate  string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"required"`
}

// Normalize returns a copy of the draft with surrounding whitespace removed
func (d CouponDraft) Normalize() CouponDraft {
	return CouponDraft{
		Code:        strings.TrimSpace(d.Code),
		ExpiryDate:  strings.TrimSpace(d.ExpiryDate),
		Description: strings.TrimSpace(d.Description),
	}
}

// CouponFilter selects a partition of the collection. A nil Deleted selects everything.
type CouponFilter struct {
	Deleted *bool
}

// Matches reports whether c belongs to the filtered partition
func (f CouponFilter) Matches(c *Coupon) bool {
	return f.Deleted == nil || *f.Deleted == c.IsDeleted
}

// CouponListResponse represents the response for coupon listings
type CouponListResponse struct {
	Items []*Coupon `json:"items"`
	Total int       `json:"total"`
}

// InitState tracks the one-time startup fetch
type InitState string

const (
	InitStatePending InitState = "pending"
	InitStateReady   InitState = "ready"
	InitStateFailed  InitState = "failed"
)

// StoreStatus summarises the store for the presentation layer
type StoreStatus struct {
	State       InitState  `json:"state"`
	Active      int        `json:"active"`
	Deleted     int        `json:"deleted"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
