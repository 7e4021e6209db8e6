package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/lexiday/internal/ai"
	"github.com/example/lexiday/internal/api"
	"github.com/example/lexiday/internal/assessment"
	"github.com/example/lexiday/internal/auth"
	"github.com/example/lexiday/internal/bot"
	"github.com/example/lexiday/internal/cache"
	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/internal/excel"
	"github.com/example/lexiday/internal/learning"
	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/lesson"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/progress"
	"github.com/example/lexiday/internal/scheduler"
	"github.com/example/lexiday/internal/session"
	"github.com/example/lexiday/internal/streak"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the reminder scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer db.Close()

	clock := streak.SystemClock{}
	defaultLoc, err := time.LoadLocation(cfg.Lesson.DefaultTimezone)
	if err != nil {
		defaultLoc = time.UTC
	}

	kv := cache.New(database.NewCacheRepository(db), clock, log)
	provider := auth.NewProvider(database.NewAccountRepository(db), kv, clock, auth.OptionsFromConfig(cfg.Auth), log)

	words := ledger.New(database.NewLearnedWordRepository(db), clock, log)
	prog := progress.NewStore(database.NewProgressRepository(db), clock, log)
	profileRepo := database.NewProfileRepository(db)
	profiles := profile.NewStore(profileRepo, clock, log)
	prog.MirrorTo(profiles)

	var generator lesson.Generator
	if gen, err := ai.NewLessonGenerator(cfg.AI, log); err == nil {
		generator = gen
	} else if errors.Is(err, ai.ErrNotConfigured) {
		log.Info("lesson generator disabled, serving bank and fallback lessons")
	} else {
		log.Warn("failed to create lesson generator", zap.Error(err))
	}
	lessons := lesson.NewService(generator, database.NewLessonBankRepository(db), nil, cfg.Lesson.Timeout, log)

	coord := session.New(session.Deps{
		Identity:        provider,
		Progress:        prog,
		Profiles:        profiles,
		Ledger:          words,
		Cache:           kv,
		Backup:          &excel.Backuper{Dir: cfg.Storage.BackupDir, Clock: clock},
		DefaultLocation: defaultLoc,
		Clock:           clock,
		Logger:          log,
	})
	defer coord.Close()

	srv := api.NewServer(api.Deps{
		Coordinator: coord,
		Flow:        learning.NewFlow(words, prog, profiles, lessons, clock, log),
		Ledger:      words,
		Progress:    prog,
		Profiles:    profiles,
		Assessment:  assessment.NewModule(kv, nil),
		Ping:        db.PingContext,
		Logger:      log,
	})

	var notifier scheduler.Notifier
	if cfg.Reminders.Enabled && cfg.Reminders.TelegramToken != "" {
		b, err := bot.New(cfg.Reminders.TelegramToken, &bot.Config{AppURL: cfg.Reminders.AppURL, ButtonText: bot.DefaultConfig().ButtonText}, log)
		if err != nil {
			log.Error("reminders disabled", zap.Error(err))
		} else {
			notifier = b
		}
	}
	sched := scheduler.New(scheduler.Deps{
		Profiles: profileRepo,
		Gate:     words.Gate(),
		Progress: prog,
		Notifier: notifier,
		Maintenance: []scheduler.Task{
			{Name: "cache.purge", Run: func(ctx context.Context) error {
				n, err := kv.Purge(ctx)
				if n > 0 {
					log.Info("purged expired cache entries", zap.Int64("count", n))
				}
				return err
			}},
			{Name: "auth.limiters", Run: func(ctx context.Context) error {
				if n := provider.PruneLimiters(); n > 0 {
					log.Debug("pruned sign-in limiters", zap.Int("count", n))
				}
				return nil
			}},
			{Name: "session.deletions", Run: func(ctx context.Context) error {
				n, err := coord.RetryPendingDeletions(ctx)
				if n > 0 {
					log.Info("finished pending account deletions", zap.Int("count", n))
				}
				return err
			}},
		},
		Clock:           clock,
		DefaultLocation: defaultLoc,
		Logger:          log,
	})
	if err := sched.Start(); err != nil {
		log.Error("scheduler disabled", zap.Error(err))
	} else {
		defer sched.Stop()
		log.Info("scheduler started", zap.Bool("reminders", notifier != nil))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		return err
	}

	if n, err := kv.Purge(shutdownCtx); err == nil && n > 0 {
		log.Info("purged expired cache entries", zap.Int64("count", n))
	}
	log.Info("server stopped")
	return nil
}
