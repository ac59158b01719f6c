package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"consulting-calendar/internal/app"
	"consulting-calendar/internal/calendar"
	"consulting-calendar/internal/config"
	"consulting-calendar/internal/gcal"
	appLog "consulting-calendar/internal/log"
	"consulting-calendar/internal/server"
	"consulting-calendar/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		appLog.Fatal("failed to load config", err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	if appLog.ParseLevel(cfg.LogLevel) != appLog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var backend store.Backend
	if cfg.DatabaseURL == "" {
		appLog.Info("DATABASE_URL not set, using in-memory store")
		backend = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			appLog.Fatal("failed to connect to db", err)
		}
		defer pg.Close()
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				appLog.Fatal("migration failed", err)
			}
			appLog.Info("database migrated")
		}
		backend = pg
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		appLog.Error("unknown timezone, using UTC", err, "timezone", cfg.Timezone)
		loc = time.UTC
	}

	oauthCfg := gcal.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	var lister calendar.AppointmentLister = backend
	if oauthCfg != nil && cfg.Google.EngineerID != "" {
		lister = calendar.MergedLister{
			Primary: backend,
			Secondary: []calendar.AppointmentLister{&gcal.Source{
				Config:     oauthCfg,
				TokenFile:  cfg.Google.TokenFile,
				CalendarID: cfg.Google.CalendarID,
				EngineerID: cfg.Google.EngineerID,
				Location:   loc,
			}},
		}
		appLog.Info("google calendar import enabled", "engineer", cfg.Google.EngineerID, "calendar", cfg.Google.CalendarID)
	}

	appInstance := &app.App{
		Backend:   backend,
		Lister:    lister,
		Auth:      app.Authenticator{JWTSecret: cfg.JWTSecret, StaticTokens: cfg.StaticTokens},
		Display:   cfg.Display,
		OAuth:     oauthCfg,
		TokenFile: cfg.Google.TokenFile,
	}

	appLog.Info("effective config",
		"listen", cfg.ListenAddr,
		"database", cfg.DatabaseURL != "",
		"jwt", cfg.JWTSecret != "",
		"static_tokens", len(cfg.StaticTokens),
		"cell_display_count", cfg.Display.CellDisplayCount,
		"timezone", loc.String(),
	)

	if err := server.Run(ctx, cfg.ListenAddr, appInstance.Router()); err != nil {
		appLog.Error("server stopped", err)
		os.Exit(1)
	}
	appLog.Info("server exiting")
}
