package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/freshfield/cleanbooking/api"
	"github.com/freshfield/cleanbooking/config"
	"github.com/freshfield/cleanbooking/internal/metrics"
	"github.com/freshfield/cleanbooking/internal/service/booking"
	"github.com/freshfield/cleanbooking/internal/service/catalog"
	"github.com/freshfield/cleanbooking/internal/service/quotes"
)

// Services collects everything the HTTP surface needs.
type Services struct {
	Catalog  catalog.CatalogUseCase
	Bookings booking.BookingUseCase
	Coupons  api.CouponValidator
	Quotes   *quotes.QuoteService
}

// Run starts the HTTP server and the quote-session janitor, blocking until
// ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, svcs Services) error {
	router := newRouter(cfg, svcs)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	if svcs.Quotes != nil {
		go svcs.Quotes.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, svcs Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.HTTP.DocsFile != "" {
		router.StaticFile("/openapi.json", cfg.HTTP.DocsFile)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/openapi.json"),
		)))
	}

	v1 := router.Group("/api/v1")
	api.NewCatalogHandler(svcs.Catalog).Register(v1)
	api.NewCouponHandler(svcs.Coupons).Register(v1)
	api.NewAvailabilityHandler(svcs.Bookings).Register(v1)
	api.NewBookingHandler(svcs.Bookings).Register(v1.Group("/bookings"))
	api.NewQuoteHandler(svcs.Quotes).Register(v1.Group("/quotes"))

	return router
}
