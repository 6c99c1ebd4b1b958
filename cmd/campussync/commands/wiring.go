package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"campussync/internal/browser"
	"campussync/internal/chrono"
	"campussync/internal/config"
	"campussync/internal/db"
	"campussync/internal/extract"
	"campussync/internal/scrapers/moodle"
	"campussync/internal/scrapers/records"
	"campussync/internal/store"
	"campussync/internal/syncjob"
	"campussync/internal/telemetry"
	"campussync/internal/validate"
	"campussync/lib/util/serviceutil"
)

type services struct {
	cfg       config.Config
	tel       telemetry.API
	store     store.Store
	extractor extract.Extractor
	validator validate.Validator
	orch      syncjob.Orchestrator
}

func loadConfig() config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	return cfg
}

func openStore(ctx context.Context, cfg config.Config, tel telemetry.API) (store.Store, *sql.DB) {
	database, err := cfg.Database.OpenDB()
	if err != nil {
		serviceutil.Fatal("open database", err)
	}
	err = db.Migrate(ctx, database)
	if err != nil {
		serviceutil.Fatal("migrate database", err)
	}
	return store.NewStore(database, chrono.NewStandardTime(), tel), database
}

func portalUrls(cfg config.Config) (*url.URL, string, error) {
	if cfg.LMS.BaseUrl == "" {
		return nil, "", fmt.Errorf("lms.base_url is not configured")
	}
	if cfg.Records.BaseUrl == "" {
		return nil, "", fmt.Errorf("records.base_url is not configured")
	}
	lmsUrl, err := url.Parse(cfg.LMS.BaseUrl)
	if err != nil {
		return nil, "", fmt.Errorf("lms.base_url: %w", err)
	}
	return lmsUrl, cfg.Records.BaseUrl, nil
}

// setup wires every component of a running service, the returned function
// cancels running jobs and releases everything.
func setup(ctx context.Context, serviceName string) (services, func()) {
	cfg := loadConfig()

	otel, err := telemetry.SetupFromEnv(ctx, serviceName)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}

	tel := telemetry.SlogAPI{}
	now := chrono.NewStandardTime()
	st, database := openStore(ctx, cfg, tel)

	lmsUrl, recordsUrl, err := portalUrls(cfg)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	extractor := extract.NewExtractor(cfg.Heuristics, now, tel)
	validator := validate.NewValidator(cfg.Validate, tel)
	lms := moodle.NewScraper(
		lmsUrl,
		browser.NewChrome(cfg.LMSBrowserOptions(), tel),
		cfg.MoodleOptions(),
		now,
		tel,
	)
	rec := records.NewScraper(
		recordsUrl,
		browser.NewChrome(cfg.RecordsBrowserOptions(), tel),
		extractor,
		validator,
		cfg.RecordsOptions(),
		tel,
	)
	orch := syncjob.NewOrchestrator(ctx, syncjob.NewStatusStore(), st, lms, rec, validator, tel)

	cleanup := func() {
		orch.Shutdown()
		database.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}

	return services{
		cfg:       cfg,
		tel:       tel,
		store:     st,
		extractor: extractor,
		validator: validator,
		orch:      orch,
	}, cleanup
}
