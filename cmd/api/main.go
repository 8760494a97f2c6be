package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"convoydesk/internal/config"
	"convoydesk/internal/database"
	"convoydesk/internal/domain/booking"
	"convoydesk/internal/domain/cleanup"
	"convoydesk/internal/domain/closure"
	"convoydesk/internal/domain/conflict"
	"convoydesk/internal/domain/desk"
	"convoydesk/internal/domain/guildconfig"
	"convoydesk/internal/domain/intake"
	"convoydesk/internal/domain/realtime"
	"convoydesk/internal/domain/reconcile"
	"convoydesk/internal/domain/reminder"
	"convoydesk/internal/pkg/discord"
	jwtsvc "convoydesk/internal/pkg/jwt"
	"convoydesk/internal/repository"
	"convoydesk/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	bookingRepo := repository.NewBookingRepository(db)
	closureRepo := repository.NewClosureRepository(db)
	configRepo := repository.NewGuildConfigRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	draftRepo := repository.NewDraftRepository(db)

	configService := guildconfig.NewService(configRepo, guildconfig.Defaults{
		DurationMinutes: cfg.DefaultDurationMinutes,
		BufferMinutes:   cfg.DefaultBufferMinutes,
		CategoryPrefix:  cfg.DefaultCategoryPrefix,
		ReminderOffsets: cfg.DefaultReminderOffsets,
	})
	detector := conflict.NewDetector(repository.NewConflictCandidates(bookingRepo, closureRepo))
	bookingService := booking.NewService(bookingRepo, configService, detector)
	closureService := closure.NewService(closureRepo)

	var gateway reconcile.Gateway
	if cfg.DiscordToken != "" {
		gw, err := discord.New(ctx, cfg.DiscordToken)
		if err != nil {
			log.Fatal(err)
		}
		gateway = gw
	} else {
		log.Println("DISCORD_TOKEN not set, using in-memory chat gateway")
		gateway = discord.NewMemory()
	}
	engine := reconcile.NewEngine(gateway, bookingRepo, bookingService, configService)

	hub := realtime.NewHub()
	bookingDesk := desk.New(bookingService, engine, hub, bookingRepo)

	var drafts intake.DraftStore = draftRepo
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		drafts = intake.NewRedisDraftStore(rdb)
		log.Println("Intake drafts stored in Redis")
	}
	intakeService := intake.NewService(drafts, bookingDesk, cfg.DraftTTL)

	scheduler, err := reminder.NewScheduler()
	if err != nil {
		log.Fatal(err)
	}
	runner := reminder.NewRunner(bookingRepo, reminderRepo, configService, engine, cfg.ReminderTick)
	if err := scheduler.AddRunner(runner, cfg.ReminderTick); err != nil {
		log.Fatal(err)
	}
	if cfg.ResyncInterval > 0 {
		err := scheduler.Every("resync", cfg.ResyncInterval, func(ctx context.Context) {
			if _, err := bookingDesk.Resync(ctx); err != nil {
				log.Printf("resync_error err=%v", err)
			}
		})
		if err != nil {
			log.Fatal(err)
		}
	}
	if cfg.CleanupInterval > 0 {
		cleaner := cleanup.NewService(draftRepo, reminderRepo)
		cleanupCfg := cleanup.Config{
			ReminderLogRetentionDays: cfg.ReminderLogRetentionDays,
			Interval:                 cfg.CleanupInterval,
			Enabled:                  true,
		}
		err := scheduler.Every("cleanup", cleanupCfg.Interval, func(ctx context.Context) {
			cleaner.RunScheduledCleanup(ctx, cleanupCfg)
		})
		if err != nil {
			log.Fatal(err)
		}
	}
	scheduler.Start()

	router := server.NewRouter(jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL), cfg.CORSAllowedOrigins, server.Handlers{
		Desk:     desk.NewHandler(bookingDesk),
		Closures: closure.NewHandler(closureService),
		Configs:  guildconfig.NewHandler(configService),
		Intake:   intake.NewHandler(intakeService),
		Realtime: realtime.NewHandler(hub),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Printf("scheduler shutdown error: %v", err)
	}
}
