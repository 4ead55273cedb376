package main

import (
	"context"
	"errors"
	"fmt"
	"ms-booking/internal/analytics"
	analytics_api "ms-booking/internal/analytics/api"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/events"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/events/event_api"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/messages"
	messagedb "ms-booking/internal/messages/db"
	"ms-booking/internal/messages/message_api"
	"ms-booking/internal/presence"
	"ms-booking/internal/realtime"
	"ms-booking/internal/sse"
	"ms-booking/internal/tickets/checkin"
	ticketdb "ms-booking/internal/tickets/db"
	tickets "ms-booking/internal/tickets/service"
	"ms-booking/internal/tickets/ticket_api"
	"ms-booking/internal/utils"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

// publisher is what both the booking engine and messaging publish through.
type publisher interface {
	booking.Publisher
	messages.Publisher
}

func main() {
	log := logger.NewLogger("ms-booking")
	defer log.Close()

	log.Info("APP", "Starting booking service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	log.Info("CONFIG", cfg.String())

	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		defer runner.Close()
	}

	authenticator := &auth.Authenticator{AdminEmail: cfg.Auth.AdminEmail, Logger: log}
	if cfg.Auth.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		authenticator.Verifier = verifier
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against issuer %s", cfg.Auth.OIDCIssuer))
	} else {
		authenticator.Verifier = &auth.HMACVerifier{Secret: []byte(cfg.Auth.JWTSecret)}
		log.Warn("AUTH", "OIDC_ISSUER not set, verifying HS256 tokens with JWT_SECRET")
	}

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, identity cache disabled: %v", cfg.Redis.Addr, err))
		} else {
			authenticator.Cache = auth.NewRedisIdentityCache(redisClient, cfg.Auth.IdentityCacheTTL)
			log.Info("REDIS", fmt.Sprintf("✅ Identity cache connected to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
		}
	}

	var domainEvents publisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		domainEvents = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Info("KAFKA", "KAFKA_ENABLED=false, domain events are not published")
	}

	codes, err := checkin.NewGenerator(cfg.QR.SecretKey)
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	emitter := sse.NewInventoryEmitter()
	bookingService := booking.NewBookingService(booking.BunUnitOfWork{DB: bunDB}, codes, domainEvents, emitter, log, cfg.Booking.MaxRetries)
	eventService := events.NewService(bunDB, bookingService, emitter, log)
	ticketService := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, &eventdb.DB{Bun: bunDB}, codes, log)
	analyticsService := analytics.NewService(bunDB, log)

	messageService := messages.NewService(&messagedb.DB{Bun: bunDB}, domainEvents, log)
	relay := presence.NewRelay(presence.NewRegistry(), messageService, log)
	messageService.SetNotifier(relay)

	eventHandler := event_api.NewHandler(eventService, log)
	inventoryHandler := event_api.NewSSEHandler(log, emitter, &eventdb.DB{Bun: bunDB})
	bookingHandler := booking_api.NewHandler(bookingService, log)
	ticketHandler := ticket_api.NewHandler(ticketService, log)
	messageHandler := message_api.NewHandler(messageService, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, eventService, log)
	wsHandler := realtime.NewHandler(relay, cfg.Realtime, cfg.Server.CORSOrigins, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// --- Public Routes ---
		r.Get("/health", healthHandler(bunDB))
		r.Get("/events", eventHandler.ListEvents)
		r.Get("/events/featured", eventHandler.FeaturedEvents)
		r.Get("/events/search", eventHandler.SearchEvents)
		r.Get("/events/{eventId}", eventHandler.GetEvent)
		r.Get("/events/{eventId}/inventory/stream", inventoryHandler.HandleInventory)
		log.Info("ROUTER", "Public event routes registered under /api/events")

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Post("/events", eventHandler.CreateEvent)
			r.Put("/events/{eventId}", eventHandler.UpdateEvent)
			r.Delete("/events/{eventId}", eventHandler.DeleteEvent)
			r.Get("/events/user/my-events", eventHandler.MyEvents)
			r.Get("/events/user/my-tickets", ticketHandler.MyTickets)
			r.Get("/events/{eventId}/attendance", ticketHandler.Attendance)

			r.Post("/events/{eventId}/book", bookingHandler.BookTickets)
			r.Post("/events/tickets/{ticketId}/cancel", bookingHandler.CancelTicket)
			r.Get("/events/tickets/{ticketId}/qr", ticketHandler.TicketQR)
			r.Post("/events/checkin", ticketHandler.CheckinTicket)
			log.Info("ROUTER", "Booking and ticket routes registered under /api/events")

			r.Route("/messages", messageHandler.Routes)
			r.Get("/realtime/ws", wsHandler.ServeWS)
			log.Info("ROUTER", "Messaging routes registered under /api/messages and /api/realtime")

			analyticsHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Admin routes registered under /api/admin")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Booking service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Booking service shutdown complete")
	}
	messageService.Flush()
}

func healthHandler(db *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unavailable", "unavailable"))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Server is running", map[string]string{"status": "ok"}))
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}
