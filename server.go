package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/go-co-op/gocron/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"fitDietAPI/handlers"
	"fitDietAPI/internal/cache"
	"fitDietAPI/internal/catalog"
	"fitDietAPI/internal/config"
	"fitDietAPI/internal/notification"
	"fitDietAPI/internal/store"
	"fitDietAPI/middleware"
	"fitDietAPI/services"
)

const (
	notificationWorkers = 4
	notificationQueue   = 256
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.ClerkSecretKey == "" {
		return errors.New("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	log.Println("Clerk initialized successfully")
	if cfg.ClerkWebhookSecret == "" {
		log.Println("Warning: CLERK_WEBHOOK_SECRET not set, Clerk webhooks will be refused")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing database...")
		st.Close()
	}()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	snapshots := snapshotCache(ctx, cfg)
	if c, ok := snapshots.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Printf("Snapshot cache close error: %v", err)
			}
		}()
	}

	dispatcher := services.NewNotificationDispatcher(st, notificationWorkers, notificationQueue)
	defer dispatcher.Stop()
	fcmService, err := notification.NewFCMService(cmd.Context(), cfg.FCMServiceAccountJSON, cfg.FCMCredentialsFile)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		dispatcher.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	reg := prometheus.DefaultRegisterer
	middleware.InitPrometheus(reg)
	services.RegisterMetrics(reg)

	engine := services.NewEngine(st, cat, dispatcher)
	gamificationService := services.NewGamificationService(engine, services.ClerkProfiles{})
	dietService := services.NewDietService(engine, cfg.SupersedeActiveProgram)
	leaderboardService := services.NewLeaderboardService(st, snapshots, cat.Rules())
	notificationService := services.NewNotificationService(st)
	userService := services.NewUserService(st)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if err := leaderboardService.Schedule(sched, cfg.LeaderboardRefreshInterval); err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			if n := limiter.Cleanup(); n > 0 {
				log.Printf("[Scheduler] dropped %d idle rate limit buckets", n)
			}
		}),
	); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Scheduler shutdown error: %v", err)
		}
	}()

	r := newRouter(routerDeps{
		store:         st,
		cfg:           cfg,
		limiter:       limiter,
		gamification:  handlers.NewGamificationHandler(gamificationService, leaderboardService),
		diet:          handlers.NewDietHandler(dietService),
		notifications: handlers.NewNotificationHandler(notificationService),
		webhooks:      handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret),
	})

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret", handlers.TimezoneHeader}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Println("Got signal:", sig)
	case err := <-serverErr:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}

// snapshotCache uses Redis when configured and reachable, memory otherwise.
func snapshotCache(ctx context.Context, cfg *config.Config) cache.SnapshotCache {
	if cfg.RedisURL == "" {
		return cache.NewMemory()
	}
	r, err := cache.NewRedis(cfg.RedisURL, 2*cfg.LeaderboardRefreshInterval)
	if err == nil {
		if err = r.Ping(ctx); err != nil {
			r.Close()
		}
	}
	if err != nil {
		log.Printf("Warning: Redis unavailable, keeping leaderboard snapshot in memory: %v", err)
		return cache.NewMemory()
	}
	log.Println("Leaderboard snapshot cached in Redis")
	return r
}

type routerDeps struct {
	store         store.Store
	cfg           *config.Config
	limiter       *middleware.RateLimiter
	gamification  *handlers.GamificationHandler
	diet          *handlers.DietHandler
	notifications *handlers.NotificationHandler
	webhooks      *handlers.WebhookHandler
}

func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(d.limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(d.cfg.MetricsUser, d.cfg.MetricsPass)(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(d.cfg.PprofSecret)(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := d.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "fitDiet-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", d.webhooks.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.ClerkAuthMiddleware)

	api.HandleFunc("/gamification/status", d.gamification.GetStatus).Methods("GET")
	api.HandleFunc("/gamification/daily-login", d.gamification.DailyLogin).Methods("POST")
	api.HandleFunc("/gamification/achievements", d.gamification.GetAchievements).Methods("GET")
	api.HandleFunc("/gamification/goals/{kind}/complete", d.gamification.CompleteGoal).Methods("POST")
	api.HandleFunc("/gamification/daily-tasks", d.gamification.GetDailyTasks).Methods("GET")
	api.HandleFunc("/gamification/tasks/photo", d.gamification.LogPhoto).Methods("POST")
	api.HandleFunc("/gamification/metrics", d.gamification.ReportMetrics).Methods("PUT")
	api.HandleFunc("/gamification/history", d.gamification.GetHistory).Methods("GET")
	api.HandleFunc("/gamification/leaderboard", d.gamification.GetLeaderboard).Methods("GET")

	api.HandleFunc("/diet/start", d.diet.StartDiet).Methods("POST")
	api.HandleFunc("/diet/catalog", d.diet.GetCatalog).Methods("GET")
	api.HandleFunc("/diet/active", d.diet.GetActiveProgram).Methods("GET")
	api.HandleFunc("/diet/my-diets", d.diet.GetMyDiets).Methods("GET")
	api.HandleFunc("/diet/program/{program_id}", d.diet.GetProgram).Methods("GET")
	api.HandleFunc("/diet/program/{program_id}/day/{n:[0-9]+}/complete", d.diet.CompleteDay).Methods("POST")

	api.HandleFunc("/notifications/register-device", d.notifications.RegisterDevice).Methods("POST")

	return r
}
