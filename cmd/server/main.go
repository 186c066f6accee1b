package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-system/internal/config"
	"storefront-system/internal/database"
	"storefront-system/internal/handlers"
	"storefront-system/internal/kafka"
	"storefront-system/internal/logger"
	"storefront-system/internal/models"
	"storefront-system/internal/redis"
	"storefront-system/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting storefront system server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	catalogService := services.NewCatalogService(db, log)
	cartService := services.NewCartService(db, log)
	promoService := services.NewPromoService(db, log, cartService)
	checkoutService := services.NewCheckoutService(db, log, cartService, promoService, catalogService, &cfg.Checkout)
	orderService := services.NewOrderService(db, log)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	productHandler := handlers.NewProductHandler(catalogService, log)
	cartHandler := handlers.NewCartHandler(cartService, catalogService, promoService, log)
	checkoutHandler := handlers.NewCheckoutHandler(cartService, checkoutService, producer, log)
	orderHandler := handlers.NewOrderHandler(orderService, producer, log)
	promoHandler := handlers.NewPromoHandler(promoService, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	registerEventHandlers(consumer, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(&cfg.Auth, productHandler, cartHandler, checkoutHandler, orderHandler, promoHandler, healthHandler, rateLimitHandler, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(authCfg *config.AuthConfig, productHandler *handlers.ProductHandler, cartHandler *handlers.CartHandler, checkoutHandler *handlers.CheckoutHandler, orderHandler *handlers.OrderHandler, promoHandler *handlers.PromoHandler, healthHandler *handlers.HealthHandler, rateLimitHandler *handlers.RateLimitHandler, rateLimiter *services.RateLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		identified := handlers.IdentityMiddleware(authCfg, handlers.RateLimitMiddleware(rateLimiter, log, h))
		return corsMiddleware(identified.ServeHTTP)
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Catalog endpoints
	mux.HandleFunc("/api/products", applyAPI(handleProductsRoute(productHandler)))
	mux.HandleFunc("/api/products/", applyAPI(productHandler.GetProduct))

	// Cart endpoints
	mux.HandleFunc("/api/cart", applyAPI(cartHandler.GetCart))
	mux.HandleFunc("/api/cart/items", applyAPI(cartHandler.HandleItems))
	mux.HandleFunc("/api/cart/items/", applyAPI(cartHandler.RemoveItem))
	mux.HandleFunc("/api/cart/promotion", applyAPI(cartHandler.HandlePromotion))

	// Checkout and order endpoints
	mux.HandleFunc("/api/checkout", applyAPI(checkoutHandler.Checkout))
	mux.HandleFunc("/api/orders", applyAPI(orderHandler.ListOrders))
	mux.HandleFunc("/api/orders/summary", applyAPI(orderHandler.SalesSummary))
	mux.HandleFunc("/api/orders/", applyAPI(orderHandler.HandleOrder))

	// Promotion endpoints
	mux.HandleFunc("/api/promotions/validate", applyAPI(promoHandler.ValidateCode))
	mux.HandleFunc("/api/promo-codes", applyAPI(promoHandler.HandleCollection))
	mux.HandleFunc("/api/promo-codes/", applyAPI(promoHandler.HandleItem))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(rateLimitHandler.Status))

	return mux
}

// handleProductsRoute обрабатывает коллекцию товаров
func handleProductsRoute(handler *handlers.ProductHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListProducts(w, r)
		case http.MethodPost:
			handler.CreateProduct(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeOrderCreated, func(ctx context.Context, event *models.Event) error {
		var data models.OrderCreatedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("unmarshal order created data: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"event_id":     event.ID,
			"order_number": data.OrderNumber,
			"grand_total":  data.GrandTotal,
		}).Info("Processing order created event")
		// Здесь можно добавить отправку подтверждения покупателю
		return nil
	})

	consumer.RegisterHandler(models.EventTypeOrderStatusChanged, func(ctx context.Context, event *models.Event) error {
		var data models.OrderStatusChangedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("unmarshal order status changed data: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"event_id":     event.ID,
			"order_number": data.OrderNumber,
			"old_status":   data.OldStatus,
			"new_status":   data.NewStatus,
		}).Info("Processing order status changed event")
		return nil
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
