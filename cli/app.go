// ABOUTME: Dependency wiring shared by every CLI command
// ABOUTME: Builds ledger, token provider, engine, and ingestion drivers from config
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/harperreed/fitsync/config"
	"github.com/harperreed/fitsync/db"
	"github.com/harperreed/fitsync/db/postgres"
	"github.com/harperreed/fitsync/formatter"
	"github.com/harperreed/fitsync/ingest"
	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/notify"
	"github.com/harperreed/fitsync/providers/strava"
	"github.com/harperreed/fitsync/providers/whoop"
	"github.com/harperreed/fitsync/sync"
)

// LedgerStore is what the app needs from either ledger backend.
type LedgerStore interface {
	sync.Ledger
	Count(ctx context.Context) (map[models.Source]int, error)
}

// App holds the wired collaborators for one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB     *sql.DB
	Ledger LedgerStore
	Tokens *db.TokenStore
	State  *db.StateStore

	OAuth     map[string]*oauth2.Config
	Provider  *sync.OAuthTokenProvider
	Calendars *sync.CalendarResolver
	Engine    *sync.Engine
	Formatter *formatter.Formatter

	Strava *strava.Client
	Whoop  *whoop.Client

	closers []func() error
}

// NewApp wires everything on top of an open SQLite database. Tokens and
// driver state always live in SQLite; the ledger moves to Postgres when
// LEDGER_DSN is set.
func NewApp(ctx context.Context, cfg *config.Config, database *sql.DB, logger *slog.Logger) (*App, error) {
	units, err := formatter.ParseUnits(cfg.Units)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        database,
		Tokens:    db.NewTokenStore(database),
		State:     db.NewStateStore(database),
		Formatter: formatter.New(units),
		Strava:    strava.NewClient(strava.ClientOptions{}),
		Whoop:     whoop.NewClient(whoop.ClientOptions{}),
	}

	if cfg.UsesPostgres() {
		pg, err := postgres.Open(ctx, cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		app.Ledger = pg
		app.closers = append(app.closers, func() error { pg.Close(); return nil })
		logger.Info("using postgres ledger")
	} else {
		app.Ledger = db.NewLedger(database)
	}

	app.OAuth, err = oauthConfigs(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Provider = sync.NewOAuthTokenProvider(app.Tokens, app.OAuth)

	gateway := sync.NewGoogleCalendar()
	app.Calendars = sync.NewCalendarResolver(gateway, cfg.CalendarName)

	var publisher notify.Publisher = notify.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kp
		app.closers = append(app.closers, kp.Close)
		logger.Info("publishing ledger transitions", "topic", cfg.KafkaTopic)
	}

	app.Engine = sync.NewEngine(app.Ledger, gateway,
		sync.WithLogger(logger),
		sync.WithPublisher(publisher),
	)
	return app, nil
}

// oauthConfigs builds a config for every service whose client is set.
func oauthConfigs(cfg *config.Config) (map[string]*oauth2.Config, error) {
	creds := map[string]sync.ClientCredentials{
		sync.ServiceStrava: {ClientID: cfg.StravaClientID, ClientSecret: cfg.StravaClientSecret},
		sync.ServiceWhoop:  {ClientID: cfg.WhoopClientID, ClientSecret: cfg.WhoopClientSecret},
		sync.ServiceGoogle: {ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
	}

	configs := make(map[string]*oauth2.Config)
	for _, service := range sync.Services {
		c := creds[service]
		if !c.Configured() {
			continue
		}
		oc, err := sync.NewOAuthConfig(service, c, cfg.AppBaseURL)
		if err != nil {
			return nil, err
		}
		configs[service] = oc
	}
	return configs, nil
}

// Deps returns the collaborators shared by the ingestion drivers.
func (a *App) Deps() ingest.Deps {
	return ingest.Deps{
		Tokens:    a.Provider,
		Calendars: a.Calendars,
		Syncer:    a.Engine,
		Formatter: a.Formatter,
		State:     a.State,
		Logger:    a.Logger,
	}
}

func (a *App) Poller() *ingest.Poller {
	return ingest.NewPoller(a.Deps(), a.Whoop, a.Config.WhoopLookback)
}

func (a *App) Backfill() *ingest.Backfill {
	return ingest.NewBackfill(a.Deps(), a.Strava)
}

func (a *App) Webhook() *ingest.WebhookHandler {
	return ingest.NewWebhookHandler(a.Deps(), a.Strava, a.Config.StravaWebhookVerifyToken)
}

// Close releases the ledger pool and the publisher. The SQLite handle
// belongs to the caller.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("failed to close app: %w", errors.Join(errs...))
	}
	return nil
}
