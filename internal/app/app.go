package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ykvlv/cf-streak-bot/internal/codeforces"
	"github.com/ykvlv/cf-streak-bot/internal/config"
	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/reminder"
	"github.com/ykvlv/cf-streak-bot/internal/scheduler"
	"github.com/ykvlv/cf-streak-bot/internal/store"
	"github.com/ykvlv/cf-streak-bot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tz := domain.NewResolver(a.cfg.DefaultTZ)
	if tz.Default().String() != a.cfg.DefaultTZ {
		a.log.Warn("default timezone unavailable, using fallback",
			zap.String("configured", a.cfg.DefaultTZ),
			zap.String("using", tz.Default().String()),
		)
	}
	scheduleLoc := tz.Resolve(a.cfg.ScheduleZone())
	markZone, err := reminder.ParseMarkZone(a.cfg.MarkZone)
	if err != nil {
		return err
	}
	slots := a.cfg.Slots()

	a.log.Info("starting cf-streak-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("store", a.cfg.StoreDriver),
		zap.String("default_tz", tz.Default().String()),
		zap.String("mark_zone", string(markZone)),
	)

	repo, err := store.Open(ctx, storeOptions(a.cfg, tz.Default().String()))
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := repo.Persist(context.Background()); err != nil {
			a.log.Warn("store flush error", zap.Error(err))
		}
		if err := repo.Close(); err != nil {
			a.log.Warn("store close error", zap.Error(err))
		}
	}()
	a.log.Info("store ready", zap.String("driver", a.cfg.StoreDriver))

	feed := codeforces.New(codeforces.Config{
		BaseURL: a.cfg.CFBaseURL,
		Count:   a.cfg.CFCount,
		Timeout: a.cfg.CFTimeout,
	}, tz, a.log)
	router := telegram.NewRouter(a.bot, a.log, repo, feed, tz, slots)
	dedup := reminder.NewDedup(repo, tz, scheduleLoc, markZone)
	svc := reminder.NewService(repo, dedup, feed, router, slots, a.log)
	sched := scheduler.New(svc, a.log, slots, scheduleLoc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.pollUpdates(gctx, router)
		return nil
	})

	err = g.Wait()
	a.log.Info("shutdown complete")
	return err
}

func (a *App) pollUpdates(ctx context.Context, router *telegram.Router) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			return
		case upd, ok := <-updCh:
			if !ok {
				return
			}
			router.HandleUpdate(ctx, upd)
		}
	}
}

func storeOptions(cfg config.Config, defaultTZ string) store.Options {
	return store.Options{
		Driver:   cfg.StoreDriver,
		DataFile: cfg.DataFile,
		DBPath:   cfg.DBPath,
		Redis: store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		},
		DefaultTZ: defaultTZ,
	}
}
