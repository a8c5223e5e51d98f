package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/chessrules"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/livegame"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/puzzle"
	"github.com/park285/cheese-arena/internal/transport"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Console: cfg.Log.Console,
		ToFile:  cfg.Log.ToFile,
		File:    cfg.Log.File,
		Caller:  cfg.Log.Caller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		obslog.L().Fatal("msgcat_init_error", zap.Error(err))
	}
	puzzles, err := puzzle.Load(cfg.PuzzlesFile)
	if err != nil {
		obslog.L().Fatal("puzzle_init_error", zap.String("file", cfg.PuzzlesFile), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder, closeSinks := buildArchive(ctx, cfg)
	var rules livegame.RulesEngine
	if cfg.ValidateMoves {
		rules = chessrules.New()
	}

	hub := transport.NewHub()
	engCfg := arena.Config{
		Puzzles:       puzzle.Uniform(puzzles),
		Rules:         rules,
		Messages:      msgs,
		RoomCooldown:  cfg.RoomCooldown,
		RatingDelta:   cfg.RatingDelta,
		DefaultRating: cfg.DefaultRating,
	}
	if recorder != nil {
		engCfg.Archive = recorder
	}
	engine := arena.New(hub, engCfg)

	stats := func() any {
		s := engine.Stats()
		s.Connections = hub.Len()
		return s
	}
	srv := transport.NewServer(ctx, hub, engine, stats, transport.Options{
		SendBuffer:     cfg.SendBuffer,
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("arena_listen",
			zap.String("addr", cfg.Addr),
			zap.Int("puzzles", puzzles.Len()),
			zap.Bool("validate_moves", cfg.ValidateMoves),
			zap.Bool("archive", recorder != nil),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Error("arena_listen_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	obslog.L().Info("arena_shutdown")

	hub.CloseAll()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		obslog.L().Warn("arena_shutdown_error", zap.Error(err))
	}
	if recorder != nil {
		recorder.Close()
	}
	closeSinks()
}

// buildArchive opens every configured sink. A sink that fails to open is
// skipped so the arena still serves games.
func buildArchive(ctx context.Context, cfg *appcfg.AppConfig) (*archive.Recorder, func()) {
	if !cfg.ArchiveEnabled() {
		return nil, func() {}
	}
	var (
		sinks   []archive.Sink
		closers []func() error
	)
	if cfg.RedisURL != "" {
		s, err := archive.NewRedisSink(ctx, cfg.RedisURL)
		if err != nil {
			obslog.L().Error("archive_redis_init_error", zap.Error(err))
		} else {
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		}
	}
	if cfg.DatabaseURL != "" {
		s, err := archive.NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			obslog.L().Error("archive_postgres_init_error", zap.Error(err))
		} else {
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		}
	}
	if cfg.ResultWebhookURL != "" {
		opts := []archive.WebhookOption{}
		if cfg.ResultWebhookToken != "" {
			opts = append(opts, archive.WithWebhookHeader("Authorization", "Bearer "+cfg.ResultWebhookToken))
		}
		sinks = append(sinks, archive.NewWebhookSink(cfg.ResultWebhookURL, opts...))
	}
	if len(sinks) == 0 {
		return nil, func() {}
	}

	rec := archive.NewRecorder(cfg.ArchiveBuffer, sinks...)
	go rec.Run(context.WithoutCancel(ctx))
	return rec, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}
