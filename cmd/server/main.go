package main

import (
	"context"
	"errors"
	"net/http"

	"coupon-manager/internal/api"
	"coupon-manager/internal/notice"
	"coupon-manager/internal/placeholder"
	"coupon-manager/internal/repository"
	"coupon-manager/internal/service"
	"coupon-manager/pkg/config"
	"coupon-manager/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			repository.NewCouponRepository,
			notice.NewBoard,
			provideCouponService,
			api.NewRouter,
		),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Desugar()}
		}),
		fx.Invoke(
			startAPIServer,
			startCouponLoader,
		),
	)

	app.Run()
}

func provideCouponService(
	cfg *config.Configuration,
	repo repository.CouponRepository,
	board *notice.Board,
	log *logger.Logger,
) *service.CouponService {
	opts := []service.Option{
		service.WithNotifier(board),
		service.WithLogger(log),
		service.WithSeedLimit(cfg.Remote.SeedLimit),
		service.WithUserID(cfg.Remote.UserID),
	}

	if cfg.Remote.Enabled {
		opts = append(opts, service.WithGateway(placeholder.NewClient(cfg, log)))
	} else {
		log.Infow("remote endpoint disabled, running offline")
	}

	return service.NewCouponService(repo, opts...)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}

// startCouponLoader fetches the initial coupons in the background so the
// API answers while the remote endpoint is still being queried
func startCouponLoader(
	lc fx.Lifecycle,
	svc *service.CouponService,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg conc.WaitGroup

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Go(func() {
				if err := svc.Initialize(ctx); err != nil {
					log.Warnw("starting without remote coupons", "error", err)
				}
			})
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
}
