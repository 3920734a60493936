// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/arducoaching/slot-booking/internal/config"
	"github.com/arducoaching/slot-booking/internal/handler"
	"github.com/arducoaching/slot-booking/internal/notify"
	"github.com/arducoaching/slot-booking/internal/service"
	"github.com/arducoaching/slot-booking/internal/store"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// ── 1. Backing store ──────────────────────────────────────────────────
	st, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	// ── 2. Notifier ───────────────────────────────────────────────────────
	var notifier notify.Notifier = notify.Noop{}
	if cfg.TwilioConfigured() {
		notifier = notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		log.Println("✓ SMS notifications enabled")
	} else {
		log.Println("SMS notifications disabled (Twilio not configured)")
	}

	// ── 3. Wire up layers and build the router ────────────────────────────
	svc := service.NewBookingService(st, notifier, service.Options{
		CoachPhone:         cfg.CoachPhone,
		BroadcastNumbers:   cfg.ClientNumbers,
		ClientConfirmation: cfg.SendClientConfirmation,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(chimiddleware.Logger)    // access log
	r.Mount("/", handler.NewRouter(handler.NewSlotHandler(svc)))

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}

// buildStore selects the backing store from configuration: postgres when
// DATABASE_URL is set, redis when REDIS_ADDR is set, in-process memory
// otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (store.SlotStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("✓ Using PostgreSQL slot store")
		return st, nil
	case cfg.RedisAddr != "":
		st := store.NewRedisStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := st.Ping(ctx); err != nil {
			return nil, err
		}
		log.Println("✓ Using Redis slot store")
		return st, nil
	default:
		log.Println("no backing store configured – using in-memory slot store (volatile)")
		return store.NewMemoryStore(), nil
	}
}
