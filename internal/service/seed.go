package service

import (
	"coupon-manager/internal/model"
	"fmt"
	"time"
)

var seedDescriptions = []string{
	"Get 10% off your next purchase of electronics.",
	"Free shipping on all orders over $50.",
	"Save $5 on any book in the fiction category.",
	"20% discount on all summer apparel.",
	"Buy one get one free on selected drinks.",
}

const fallbackDescription = "Special offer, enjoy!"

// couponsFromPosts turns fetched posts into active coupons. The post at
// index i becomes DEAL{(i+1)*10}, expiring i+1 days after today (UTC).
// Repeated post ids are dropped. A post id that was already issued to an
// earlier coupon is replaced by a local id.
func (s *CouponService) couponsFromPosts(posts []model.Post, today time.Time) []*model.Coupon {
	seen := make(map[int]struct{}, len(posts))
	coupons := make([]*model.Coupon, 0, len(posts))

	for i, post := range posts {
		coupon := &model.Coupon{
			Code:        fmt.Sprintf("DEAL%d", (i+1)*10),
			ExpiryDate:  today.UTC().AddDate(0, 0, i+1).Format(model.ExpiryDateLayout),
			Description: seedDescription(i),
			IsDeleted:   false,
		}

		if post.ID > 0 {
			if _, dup := seen[post.ID]; dup {
				s.logger.Warnw("skipping repeated post", "post_id", post.ID)
				continue
			}
			seen[post.ID] = struct{}{}
			coupon.RemoteID = post.ID
		}

		id, err := s.allocateID(post.ID)
		if err != nil {
			s.logger.Warnw("skipping post without a free id", "post_id", post.ID, "error", err)
			continue
		}
		coupon.ID = id

		coupons = append(coupons, coupon)
	}

	return coupons
}

func seedDescription(i int) string {
	if i < len(seedDescriptions) {
		return seedDescriptions[i]
	}
	return fallbackDescription
}
