package machinry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/sessions"
	"github.com/johnmuchir/machinry/community"
	"github.com/johnmuchir/machinry/db/sqlite3"
	"github.com/johnmuchir/machinry/engagement"
	"github.com/johnmuchir/machinry/random"
	"github.com/johnmuchir/machinry/revalidate"
	"github.com/johnmuchir/machinry/server"
	"github.com/johnmuchir/machinry/threads"
	"github.com/johnmuchir/machinry/web"
	"github.com/nasermirzaei89/env"
)

type App struct {
	server  *server.Server
	handler *web.Handler
	db      *sql.DB
}

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", "file::memory:?cache=shared"))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	threadRepo := sqlite3.NewThreadRepository(db)
	likeRepo := sqlite3.NewLikeRepository(db)
	actorRepo := sqlite3.NewActorRepository(db)
	groupRepo := sqlite3.NewGroupRepository(db)

	hook := newRevalidateHook()

	threadsSvc := threads.NewService(threadRepo, actorRepo, groupRepo, hook)
	engagementSvc := engagement.NewService(likeRepo, threadRepo, hook)
	communitySvc := community.NewService(actorRepo, groupRepo)

	sessionName := env.GetString("SESSION_NAME", "machinry-"+random.String(4))
	sessionKey := env.GetString("SESSION_KEY", random.String(32))
	cookieStore := sessions.NewCookieStore([]byte(sessionKey))

	httpHandler := web.NewHandler(
		threadsSvc,
		engagementSvc,
		communitySvc,
		cookieStore,
		sessionName,
	)

	app := &App{
		server:  newServer(),
		handler: httpHandler,
		db:      db,
	}

	return app, nil
}

func (app *App) Run(ctx context.Context) error {
	// Handle SIGINT (CTRL+C) gracefully.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	defer func() {
		if app.db != nil {
			err := app.db.Close()
			if err != nil {
				slog.ErrorContext(ctx, "failed to close database", "error", err)
			}
		}
	}()

	err := app.server.Run(ctx, app.handler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

func newRevalidateHook() revalidate.Hook {
	endpoint := env.GetString("REVALIDATE_ENDPOINT", "")
	if endpoint == "" {
		return revalidate.NopHook{}
	}

	return revalidate.NewHTTPHook(endpoint, http.DefaultClient)
}

func newServer() *server.Server {
	server := &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}

	return server
}

func GetLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}
