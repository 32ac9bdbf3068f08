// Command agora is a terminal client for the Agora community: the
// notification feed, direct messages, the library and role dashboards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/app"
	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/chatbot"
	"github.com/nhle/agora/internal/contact"
	"github.com/nhle/agora/internal/credential"
	"github.com/nhle/agora/internal/logging"
	"github.com/nhle/agora/internal/media"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/prefs"
	"github.com/nhle/agora/internal/realtime"
	"github.com/nhle/agora/internal/session"
	"github.com/nhle/agora/internal/store"
	"github.com/nhle/agora/internal/theme"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agora: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the configuration file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the configuration")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath, *envFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer db.Close()

	var storage prefs.Storage = prefs.Unavailable{}
	if f, err := prefs.OpenFile(cfg.Display.PrefsPath, logger); err != nil {
		logger.Warn("preferences unavailable, theme will not persist", zap.Error(err))
	} else {
		defer f.Close()
		storage = f
	}
	themes := theme.NewStore(storage, theme.NewAttribute(nil), logger)
	defer themes.Close()

	vault, err := credential.Open(model.ConfigDir())
	if err != nil {
		return fmt.Errorf("opening credential vault: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, vault,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		api.WithLogger(logger),
	)

	var sess model.Session
	if tok, err := vault.Token(); err == nil {
		if sess, err = session.FromToken(tok); err != nil {
			logger.Info("stored token rejected, signing in again", zap.Error(err))
			sess = model.Session{}
		}
	}

	reg := prometheus.NewRegistry()
	metrics := cache.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}
	defer func() {
		st := metrics.Stats()
		logger.Info("cache summary",
			zap.Float64("hits", st.Hits),
			zap.Float64("stale", st.Stale),
			zap.Float64("misses", st.Misses),
			zap.Float64("fetches", st.Fetches),
			zap.Float64("fetch_errors", st.FetchErrors),
			zap.Float64("deduped", st.Deduped),
		)
	}()

	c := cache.New(
		cache.WithPersister(db),
		cache.WithMetrics(metrics),
		cache.WithStaleTime(time.Duration(cfg.Cache.StaleSec)*time.Second),
		cache.WithLogger(logger),
	)
	defer c.Close()
	if n, err := c.Hydrate(context.Background()); err != nil {
		logger.Warn("restoring cached data failed", zap.Error(err))
	} else {
		logger.Debug("restored cached data", zap.Int("entries", n))
	}

	socketURL, err := cfg.SocketURL()
	if err != nil {
		return err
	}
	channel := realtime.New(socketURL,
		realtime.WithLogger(logger),
		realtime.WithReconnectInterval(time.Duration(cfg.Realtime.ReconnectSec)*time.Second),
		realtime.WithAuth(func() any {
			tok, err := vault.Token()
			if err != nil {
				return nil
			}
			return map[string]string{"token": tok}
		}),
	)
	defer channel.Close()

	var contacts *contact.Service
	if sender, err := contact.NewSender(cfg.Email); err != nil {
		logger.Info("contact form disabled", zap.Error(err))
	} else {
		contacts = contact.NewService(sender)
	}

	resolver, err := media.NewResolver(cfg.Media.CloudName)
	if err != nil {
		logger.Warn("media resolver disabled", zap.Error(err))
		resolver, _ = media.NewResolver("")
	}

	root := app.New(app.Deps{
		Config:  cfg,
		Logger:  logger,
		Cache:   c,
		Client:  client,
		Vault:   vault,
		Channel: channel,
		Theme:   themes,
		Contact: contacts,
		Bot:     chatbot.New(cfg.Chatbot.Endpoint, vault, cfg.Chatbot.MaxHistory, logger),
		Media:   resolver,
		Session: sess,
		History: db,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// serveMetrics exposes reg on addr in the background. The returned func
// shuts the listener down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           cache.NewMetricsHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
