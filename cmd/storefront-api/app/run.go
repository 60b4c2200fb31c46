package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/adapter/cache"
	httpadapter "github.com/aq2208/storefront-api/internal/adapter/http"
	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/adapter/kafka"
	"github.com/aq2208/storefront-api/internal/adapter/queue"
	"github.com/aq2208/storefront-api/internal/adapter/repo"
	stripeadapter "github.com/aq2208/storefront-api/internal/adapter/stripe"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	log := logging.Base()

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	cancel()

	log.Info("storefront-api: starting up")

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// init rabbitmq producer
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(ch, cfg.Rabbit.Exchange)
	if err != nil {
		return nil, nil, err
	}

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	catalog := repo.NewMySQLCatalogRepo(db)
	statusCache := cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
	broker := stripeadapter.NewCheckoutBroker(cfg.Stripe.SecretKey, cfg.Stripe.ReturnURL, cfg.Pricing.Currency)

	pricing, err := pricingFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	engine := usecase.NewEngine(orderRepo, catalog, broker, pricing).
		WithCache(statusCache).
		WithPublisher(producer)

	// payment-events listener: async settlement convergence
	stopConsumer := setupPaymentListener(cfg, engine)

	// handlers + router + middleware
	h := httpadapter.NewOrderHandler(engine, cfg.HTTP.RequestTimeout)
	th := httpadapter.NewTokenHandler(cfg)
	authz := middleware.NewAuthz(cfg)
	router := httpadapter.NewRouter(h, th, authz)

	cleanup := func() {
		stopConsumer()
		_ = ch.Close()
		_ = conn.Close()
		_ = db.Close()
		_ = rdb.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func pricingFromConfig(cfg configs.Config) (usecase.PricingConfig, error) {
	taxRate, err := decimal.NewFromString(cfg.Pricing.TaxRate)
	if err != nil {
		return usecase.PricingConfig{}, err
	}
	flatFee, err := decimal.NewFromString(cfg.Pricing.ShippingFlatFee)
	if err != nil {
		return usecase.PricingConfig{}, err
	}
	threshold, err := decimal.NewFromString(cfg.Pricing.FreeShippingThreshold)
	if err != nil {
		return usecase.PricingConfig{}, err
	}
	return usecase.PricingConfig{
		TaxRate:               taxRate,
		ShippingFlatFee:       flatFee,
		FreeShippingThreshold: threshold,
		Currency:              cfg.Pricing.Currency,
	}, nil
}

func setupPaymentListener(cfg configs.Config, engine *usecase.Engine) (stop func()) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		panic(err)
	}

	h := kafka.NewSessionCompletedHandler(engine)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicPayments}, h.Handle)
	consumer.Logger = logging.New("kafka")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logging.New("kafka").Error("payment listener stopped", "err", err)
		}
	}()

	return func() {
		cancel()
		_ = grp.Close()
	}
}
