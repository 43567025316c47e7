// Package main provides the entry point for the Fit AI backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/achievements"
	"github.com/filagate03/FIT-AAAAAI/internal/ai"
	"github.com/filagate03/FIT-AAAAAI/internal/config"
	"github.com/filagate03/FIT-AAAAAI/internal/handler"
	"github.com/filagate03/FIT-AAAAAI/internal/logger"
	"github.com/filagate03/FIT-AAAAAI/internal/media"
	"github.com/filagate03/FIT-AAAAAI/internal/payments"
	"github.com/filagate03/FIT-AAAAAI/internal/realtime"
	"github.com/filagate03/FIT-AAAAAI/internal/scheduler"
	"github.com/filagate03/FIT-AAAAAI/internal/state"
	"github.com/filagate03/FIT-AAAAAI/internal/storage"
	"github.com/filagate03/FIT-AAAAAI/internal/subs"
	"github.com/filagate03/FIT-AAAAAI/internal/telegram"
	"github.com/filagate03/FIT-AAAAAI/internal/tracker"
)

// Run is the testable entrypoint for the application.
func Run(ctx context.Context) error {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	log.Info("Starting Fit AI backend")

	store, err := storage.NewByEngine(cfg.StorageEngine, cfg.StateFile)
	if err != nil {
		log.Error("failed to open state storage", zap.Error(err))
		return err
	}

	hub := realtime.NewHub(log)
	appState := state.New(store, log, nil, func(a achievements.Achievement) {
		hub.AchievementUnlocked(a.ID, a.Title)
	})

	var subsStore subs.Store
	if cfg.DatabaseDSN != "" {
		subsStore, err = subs.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			log.Error("failed to open subscription store", zap.Error(err))
			return err
		}
	} else {
		subsStore = subs.NewMemory()
	}

	var bot *telegram.Client
	if cfg.TelegramBotToken != "" {
		bot = telegram.New(cfg.TelegramBotToken, cfg.TelegramSupportChat)
	}

	var uploader media.Uploader
	if cfg.S3Bucket != "" {
		s3Uploader, upErr := media.NewS3Uploader(ctx, cfg.S3Region, cfg.S3Bucket, cfg.CloudFrontURL)
		if upErr != nil {
			log.Error("failed to init avatar uploader", zap.Error(upErr))
			return upErr
		}
		uploader = s3Uploader
	}

	trackerOpts := tracker.Options{
		Store:   appState,
		AI:      ai.New(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel),
		Gateway: payments.New(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.PaymentSecretKey),
		Subs:    subsStore,
		Events:  hub,
		Logger:  log,
		Limits: tracker.Limits{
			CoachHistory: cfg.CoachHistoryLimit,
			DiaryEntries: cfg.DiaryEntriesLimit,
		},
		ReturnURL: cfg.PaymentReturnURL,
	}
	if bot != nil {
		trackerOpts.Bot = bot
	}
	track := tracker.New(trackerOpts)

	validate := validator.New()
	h := handler.New(handler.Options{
		Logger:   log,
		Tracker:  track,
		Hub:      hub,
		Support:  supportOrNil(bot),
		Uploader: uploader,
		Validate: validate,
		BotToken: cfg.TelegramBotToken,
	})

	r := chi.NewRouter()
	r.Get("/healthz", h.Healthz)
	r.Get("/ws/events", h.Events)
	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Get("/api/state", h.State)
		r.Post("/api/usage/reset", h.ResetUsage)
		r.Post("/api/scan", h.Scan)
		r.Post("/api/scan/confirm", h.ConfirmScan)
		r.Delete("/api/scan", h.DiscardScan)
		r.Post("/api/diary/entries", h.AddEntry)
		r.Post("/api/diary/water", h.AddWater)
		r.Put("/api/profile", h.UpdateProfile)
		r.Post("/api/coach/messages", h.SendCoachMessage)
		r.Post("/api/support", h.ContactSupport)
		r.Post("/api/payments", h.CreatePayment)
		r.Post("/api/payments/refresh", h.RefreshPayment)
		r.Delete("/api/subscription", h.CancelSubscription)
		r.Post("/api/settings/notifications", h.ToggleNotifications)
		r.Post("/api/terms/accept", h.AcceptTerms)
	})

	usageReset := scheduler.New("usage-reset", cfg.UsageResetInterval, func(time.Time) {
		track.CheckAndResetUsage()
	}, log)
	go usageReset.Start()

	var motivation scheduler.Scheduler
	if bot != nil && cfg.TelegramMotivationOn {
		motivation = scheduler.New("motivation", cfg.MotivationInterval, func(time.Time) {
			track.MaybeSendMotivation(context.Background())
		}, log)
		go motivation.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	usageReset.Stop()
	if motivation != nil {
		motivation.Stop()
	}
	return nil
}

// supportOrNil keeps the handler's Support interface nil when no bot exists,
// a typed nil would pass the interface nil check otherwise.
func supportOrNil(bot *telegram.Client) handler.Support {
	if bot == nil {
		return nil
	}
	return bot
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx); err != nil {
		os.Exit(1)
	}
}
