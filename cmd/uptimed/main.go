package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/uptimenotifier/internal/config"
	"github.com/hamed0406/uptimenotifier/internal/httpapi"
	apimw "github.com/hamed0406/uptimenotifier/internal/httpapi/middleware"
	"github.com/hamed0406/uptimenotifier/internal/logging"
	"github.com/hamed0406/uptimenotifier/internal/notify"
	"github.com/hamed0406/uptimenotifier/internal/probe"
	"github.com/hamed0406/uptimenotifier/internal/repo/memory"
	"github.com/hamed0406/uptimenotifier/internal/scheduler"
)

func main() {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	file, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	entities := file.DomainEntities()

	router, err := notify.NewRouter(logger, file.Channels, notify.WithSendTimeout(cfg.SendTimeout))
	if err != nil {
		return err
	}

	checker := probe.NewHTTPChecker(cfg.ProbeTimeout)
	transitions := memory.New(cfg.TransitionLogSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	sup := scheduler.NewSupervisor(logger, entities, checker, router,
		scheduler.WithProbeTimeout(cfg.ProbeTimeout),
		scheduler.WithTransitionStore(transitions),
		scheduler.WithTLSInspector(probe.NewTLSChecker(cfg.ProbeTimeout).Check, cfg.TLSCheckEvery),
	)
	sup.Start(gctx)

	proxies, err := apimw.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	api := httpapi.NewServer(logger, entities, checker, transitions, cfg.StatusCeiling)
	srv := &http.Server{
		Addr: cfg.ListenAddr(file),
		Handler: api.Router(httpapi.Access{
			KeyHashes:      cfg.StatusKeyHashes,
			ReqPerMin:      cfg.StatusRPM,
			Burst:          cfg.StatusBurst,
			CORSOrigin:     cfg.AllowedOrigins,
			TrustedProxies: proxies,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", srv.Addr), zap.Strings("entities", file.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown_signal")
		// Requests in flight may be waiting on a full status ceiling.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.StatusCeiling+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api_forced_shutdown", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	sup.Wait()
	logger.Info("stopped")
	return err
}
