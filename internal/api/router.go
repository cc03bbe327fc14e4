package api

import (
	"net/http"
	"os"

	"coupon-manager/internal/notice"
	"coupon-manager/internal/service"
	"coupon-manager/pkg/logger"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the coupon endpoints
func NewRouter(svc *service.CouponService, board *notice.Board, log *logger.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware,
		CORSMiddleware,
		RequestLogger(log),
		ErrorHandler(),
	)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/status", statusHandler(svc))
		api.GET("/notices", listNoticesHandler(board))

		coupons := api.Group("/coupons")
		coupons.GET("", listCouponsHandler(svc))
		coupons.GET("/deleted", listDeletedCouponsHandler(svc))
		coupons.POST("", addCouponHandler(svc))
		coupons.GET("/:id", getCouponHandler(svc))
		coupons.PUT("/:id", editCouponHandler(svc))
		coupons.DELETE("/:id", deleteCouponHandler(svc))
		coupons.POST("/:id/restore", restoreCouponHandler(svc))
	}

	return router
}
