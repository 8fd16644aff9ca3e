package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/api"
	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/blockdir"
	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/config"
	"github.com/lojasmm/choicebot/internal/logger"
	"github.com/lojasmm/choicebot/internal/session"
	"github.com/lojasmm/choicebot/internal/store"
	"github.com/lojasmm/choicebot/internal/whatsapp"
	"github.com/lojasmm/choicebot/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	db, err := store.NewBoltStore(filepath.Join(cfg.DataDir, "choicebot.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}
	defer db.Close()

	var turns store.TurnStore = db
	if cfg.TurnStore == config.TurnStoreRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis")
		}
		turns = store.NewRedisTurnStore(rdb, cfg.TurnTTL)
	}

	registry := block.NewRegistry()
	stores := bot.Stores{Blocks: db, Turns: turns, Variables: db}
	sessionMgr := session.NewManager()

	// Periodic cleanup of idle per-conversation locks
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.Cleanup(1 * time.Hour)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BlocksDir != "" {
		watcher := blockdir.New(cfg.BlocksDir, registry, db, log)
		n, err := watcher.LoadAll(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("blocks dir")
		}
		log.Info().Int("blocks", n).Str("dir", cfg.BlocksDir).Msg("blocks loaded")
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error().Err(err).Msg("blocks dir watcher stopped")
			}
		}()
	}

	apiBot := bot.NewHandler(registry, stores, sessionMgr, bot.NopChannel{}, log)
	deps := api.Deps{
		Registry:  registry,
		Bot:       apiBot,
		Blocks:    db,
		Variables: db,
		Log:       log,
		WebSocket: ws.NewHandler(apiBot, log).ServeWS,
	}

	if cfg.WhatsAppEnabled() {
		waClient := whatsapp.NewClient(cfg.WAPhoneNumberID, cfg.WAAccessToken)
		waBot := bot.NewHandler(registry, stores, sessionMgr, waClient, log)
		deps.Webhook = whatsapp.NewWebhookHandler(cfg.WAVerifyToken, func(phone, messageID string, in bot.Inbound) {
			_, err := waBot.HandleInbound(context.Background(), phone, in)
			switch {
			case errors.Is(err, bot.ErrNoActiveTurn):
				log.Debug().Str("phone", phone).Str("message", messageID).Msg("message outside of a turn")
			case err != nil:
				log.Error().Err(err).Str("phone", phone).Str("message", messageID).Msg("handling message")
			}
		}, log)
		log.Info().Str("verify_token", cfg.WAVerifyToken).Msg("whatsapp webhook enabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("base_url", cfg.BaseURL).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}
