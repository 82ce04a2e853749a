package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshfield/cleanbooking/config"
	"github.com/freshfield/cleanbooking/internal/bootstrap"
	"github.com/freshfield/cleanbooking/internal/cache"
	"github.com/freshfield/cleanbooking/internal/kafka"
	"github.com/freshfield/cleanbooking/internal/repository"
	"github.com/freshfield/cleanbooking/internal/service/booking"
	"github.com/freshfield/cleanbooking/internal/service/catalog"
	"github.com/freshfield/cleanbooking/internal/service/coupons"
	"github.com/freshfield/cleanbooking/internal/service/quotes"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.CatalogCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	catalogRepo := repository.NewCatalogRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)

	catalogService := catalog.NewCatalogService(catalogRepo, redisCache)
	couponService := coupons.NewCouponService(couponRepo, producer, cfg.Kafka.CouponTopic, logger)
	bookingService := booking.NewBookingService(
		bookingRepo,
		catalogService,
		couponService,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.SlotHoldTTLMinutes)*time.Minute,
		time.Duration(cfg.Booking.ConfirmationTTL)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithLogger(logger),
	)
	quoteService := quotes.NewQuoteService(
		catalogService,
		cfg.Pricing.CouponEndpoint,
		time.Duration(cfg.Pricing.ValidationTimeout)*time.Second,
		time.Duration(cfg.Pricing.MonitorIntervalMS)*time.Millisecond,
		time.Duration(cfg.Pricing.QuoteTTLMinutes)*time.Minute,
		logger,
	)

	if err := bootstrap.Run(ctx, cfg, bootstrap.Services{
		Catalog:  catalogService,
		Bookings: bookingService,
		Coupons:  couponService,
		Quotes:   quoteService,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
