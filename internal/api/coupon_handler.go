package api

import (
	"net/http"
	"strconv"

	"coupon-manager/internal/model"
	"coupon-manager/internal/notice"
	"coupon-manager/internal/service"
	ierr "coupon-manager/pkg/errors"

	"github.com/gin-gonic/gin"
)

func bindDraft(c *gin.Context) (model.CouponDraft, bool) {
	var draft model.CouponDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return draft, false
	}
	return draft, true
}

// statusHandler handles GET /api/status
func statusHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.Status(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// listCouponsHandler handles GET /api/coupons, ?deleted=true lists the deleted partition
func listCouponsHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted := false
		if raw := c.Query("deleted"); raw != "" {
			var err error
			deleted, err = strconv.ParseBool(raw)
			if err != nil {
				c.Error(ierr.WithError(err).
					WithHint("deleted must be true or false").
					WithReportableDetails(map[string]any{"deleted": raw}).
					Mark(ierr.ErrValidation))
				return
			}
		}

		list := svc.ListActive
		if deleted {
			list = svc.ListDeleted
		}

		coupons, err := list(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, model.CouponListResponse{Items: coupons, Total: len(coupons)})
	}
}

// listDeletedCouponsHandler handles GET /api/coupons/deleted
func listDeletedCouponsHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		coupons, err := svc.ListDeleted(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, model.CouponListResponse{Items: coupons, Total: len(coupons)})
	}
}

// getCouponHandler handles GET /api/coupons/:id
func getCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		coupon, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, coupon)
	}
}

// addCouponHandler handles POST /api/coupons
func addCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, ok := bindDraft(c)
		if !ok {
			return
		}

		coupon, err := svc.Add(c.Request.Context(), draft)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, coupon)
	}
}

// editCouponHandler handles PUT /api/coupons/:id
func editCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, ok := bindDraft(c)
		if !ok {
			return
		}

		coupon, err := svc.Edit(c.Request.Context(), c.Param("id"), draft)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, coupon)
	}
}

// deleteCouponHandler handles DELETE /api/coupons/:id
func deleteCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		coupon, err := svc.SoftDelete(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, coupon)
	}
}

// restoreCouponHandler handles POST /api/coupons/:id/restore
func restoreCouponHandler(svc *service.CouponService) gin.HandlerFunc {
	return func(c *gin.Context) {
		coupon, err := svc.Restore(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, coupon)
	}
}

// listNoticesHandler handles GET /api/notices
func listNoticesHandler(board *notice.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, model.NoticeListResponse{Items: board.List()})
	}
}
