package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/app"
	"github.com/nhle/socialterm/internal/chat"
	"github.com/nhle/socialterm/internal/credential"
	"github.com/nhle/socialterm/internal/feed"
	"github.com/nhle/socialterm/internal/friends"
	"github.com/nhle/socialterm/internal/graphql"
	"github.com/nhle/socialterm/internal/groups"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/media"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/session"
	"github.com/nhle/socialterm/internal/stomp"
	"github.com/nhle/socialterm/internal/store"
	appsync "github.com/nhle/socialterm/internal/sync"
	"github.com/nhle/socialterm/internal/theme"
	configview "github.com/nhle/socialterm/internal/ui/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "socialterm:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	path := os.Getenv("SOCIALTERM_CONFIG")
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flush, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer flush()
	log := logging.NewNamed("main")

	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer db.Close()

	storage := session.SplitStorage{State: db}
	if cfg.Storage.UseKeyring {
		ring, err := credential.Open()
		if err != nil {
			log.Warn("keyring unavailable, keeping credential in state store", zap.Error(err))
		} else {
			storage.Secrets = ring
		}
	}

	var sess *session.Store
	client := api.NewClient(cfg.API.BaseURL,
		api.WithTokenSource(api.TokenFunc(func() string { return sess.Token() })),
		api.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		api.WithRateLimit(cfg.API.RequestsPerSec),
		api.WithMaxRetries(cfg.API.MaxRetries),
	)
	sess = session.New(client, storage)

	ctx := context.Background()
	if err := sess.Init(ctx); err != nil {
		log.Warn("stored session not restored", zap.Error(err))
	}

	pref := theme.NewPreference(db)
	if err := pref.Load(ctx); err != nil {
		log.Warn("theme preference not loaded", zap.Error(err))
	}
	if cfg.Display.Theme != "" {
		if err := pref.Set(ctx, theme.Mode(cfg.Display.Theme)); err != nil {
			log.Warn("ignoring display theme", zap.Error(err))
		}
	}
	pref.Apply()

	rt := cfg.Realtime
	dialer, err := stomp.NewDialer(rt.BrokerURL,
		stomp.WithHeartbeat(time.Duration(rt.HeartbeatSec)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("configuring broker: %w", err)
	}
	channel := notify.NewChannel(dialer, notify.NewHTTPBackend(client), sess, sess,
		notify.WithTopicPrefix(rt.TopicPrefix),
		notify.WithToastTTL(time.Duration(rt.ToastTTLSec)*time.Second),
		notify.WithReconnect(
			time.Duration(rt.ReconnectMinMs)*time.Millisecond,
			time.Duration(rt.ReconnectMaxSec)*time.Second,
		),
		notify.WithCache(db),
	)

	m := app.New(app.Deps{
		Session: sess,
		Friends: friends.New(client),
		Feed:    feed.New(client, graphql.NewClient(client, cfg.GraphQL)),
		Chat:    chat.New(client),
		Groups:  groups.New(client),
		Media:   media.New(client),
		Notify:  channel,
		Theme:   pref,
		Poller:  appsync.New(),

		Config:   cfg,
		Settings: configview.FileBackend{Path: path},
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
