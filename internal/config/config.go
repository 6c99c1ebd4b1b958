// Package config loads the service configuration from campussync.json5 (and
// campussync.local.json5), a .env file and the environment. Anything left
// unset falls back to the defaults of the package it configures.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"campussync/internal/browser"
	"campussync/internal/db"
	"campussync/internal/extract"
	"campussync/internal/scrapers/moodle"
	"campussync/internal/scrapers/records"
	"campussync/internal/validate"
	"campussync/lib/configutil"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

const DefaultFile = "campussync.json5"

const (
	envDatabaseFile  = "CAMPUSSYNC_DB_FILE"
	envDatabaseUrl   = "CAMPUSSYNC_DB_URL"
	envDatabaseToken = "CAMPUSSYNC_DB_AUTH_TOKEN"
	envListen        = "CAMPUSSYNC_LISTEN"
	envLMSUrl        = "CAMPUSSYNC_LMS_URL"
	envRecordsUrl    = "CAMPUSSYNC_RECORDS_URL"
	envChromePath    = "CHROME_PATH"
)

type BrowserConfig struct {
	Headless  *bool  `json:"headless"`
	ExecPath  string `json:"exec_path"`
	UserAgent string `json:"user_agent"`
	// ScrollPauseMs is the pause after each scroll cycle in milliseconds.
	ScrollPauseMs int `json:"scroll_pause_ms"`
}

type LMSConfig struct {
	BaseUrl               string   `json:"base_url"`
	CourseDenyList        []string `json:"course_deny_list"`
	ExcludedKinds         []string `json:"excluded_kinds"`
	CourseConcurrency     int      `json:"course_concurrency"`
	RequestsPerSecond     float64  `json:"requests_per_second"`
	PageTimeoutSeconds    int      `json:"page_timeout_seconds"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"`
	ItemTimeoutSeconds    int      `json:"item_timeout_seconds"`
	MaxPDFPages           int      `json:"max_pdf_pages"`
	MaxBodyRunes          int      `json:"max_body_runes"`
	LoginAttempts         int      `json:"login_attempts"`
	DumpDir               string   `json:"dump_dir"`
}

type RecordsConfig struct {
	BaseUrl            string               `json:"base_url"`
	ScrollCycles       records.ScrollCycles `json:"scroll_cycles"`
	CalendarMonths     int                  `json:"calendar_months"`
	CalendarRewind     int                  `json:"calendar_rewind"`
	MinScheduleEntries int                  `json:"min_schedule_entries"`
	PageTimeoutSeconds int                  `json:"page_timeout_seconds"`
	PageSettleMs       int                  `json:"page_settle_ms"`
	LoginAttempts      int                  `json:"login_attempts"`
}

type Config struct {
	Database   db.Config          `json:"database"`
	Listen     string             `json:"listen"`
	Browser    BrowserConfig      `json:"browser"`
	LMS        LMSConfig          `json:"lms"`
	Records    RecordsConfig      `json:"records"`
	Heuristics extract.Heuristics `json:"heuristics"`
	Validate   validate.Options   `json:"validate"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Defaults is the configuration used for every field a file leaves unset.
func Defaults() Config {
	headless := true
	moodleOpts := moodle.DefaultOptions()
	recordsOpts := records.DefaultOptions()
	browserOpts := browser.DefaultOptions()

	return Config{
		Database: db.Config{File: "campussync.db"},
		Listen:   ":8080",
		Browser: BrowserConfig{
			Headless:      &headless,
			UserAgent:     browserOpts.UserAgent,
			ScrollPauseMs: int(browserOpts.ScrollPause / time.Millisecond),
		},
		LMS: LMSConfig{
			CourseDenyList:        moodleOpts.CourseDenyList,
			ExcludedKinds:         moodleOpts.ExcludedKinds,
			CourseConcurrency:     moodleOpts.CourseConcurrency,
			RequestsPerSecond:     moodleOpts.RequestsPerSecond,
			PageTimeoutSeconds:    30,
			RequestTimeoutSeconds: int(moodleOpts.RequestTimeout / time.Second),
			ItemTimeoutSeconds:    int(moodleOpts.ItemTimeout / time.Second),
			MaxPDFPages:           moodleOpts.MaxPDFPages,
			MaxBodyRunes:          moodleOpts.MaxBodyRunes,
			LoginAttempts:         moodleOpts.LoginAttempts,
		},
		Records: RecordsConfig{
			ScrollCycles:       recordsOpts.ScrollCycles,
			CalendarMonths:     recordsOpts.CalendarMonths,
			CalendarRewind:     recordsOpts.CalendarRewind,
			MinScheduleEntries: recordsOpts.MinScheduleEntries,
			PageTimeoutSeconds: int(browserOpts.ActionTimeout / time.Second),
			PageSettleMs:       int(recordsOpts.PageSettle / time.Millisecond),
			LoginAttempts:      recordsOpts.LoginAttempts,
		},
		Heuristics: extract.DefaultHeuristics(),
		Validate:   validate.DefaultOptions(),
	}
}

// Load reads the configuration file found by searching up from the cwd for
// name. A missing file is not an error, the defaults and the environment
// are used instead.
func Load(name string) (Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg, err := configutil.ReadRecursively[Config](name)
	if configutil.IsNotExist(err) {
		slog.Warn("no configuration file found, using defaults", "name", name)
		cfg, err = Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	err = mergo.Merge(&cfg, Defaults(), mergo.WithoutDereference)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(envDatabaseFile, &cfg.Database.File)
	set(envDatabaseUrl, &cfg.Database.Url)
	set(envDatabaseToken, &cfg.Database.AuthToken)
	set(envListen, &cfg.Listen)
	set(envLMSUrl, &cfg.LMS.BaseUrl)
	set(envRecordsUrl, &cfg.Records.BaseUrl)
	set(envChromePath, &cfg.Browser.ExecPath)
}

func (c Config) browserOptions(pageTimeoutSeconds int) browser.Options {
	opts := browser.DefaultOptions()
	if c.Browser.Headless != nil {
		opts.Headless = *c.Browser.Headless
	}
	opts.ExecPath = c.Browser.ExecPath
	opts.UserAgent = c.Browser.UserAgent
	opts.ScrollPause = millis(c.Browser.ScrollPauseMs)
	opts.ActionTimeout = seconds(pageTimeoutSeconds)
	return opts
}

// LMSBrowserOptions are the options of the browser used to log into the LMS.
func (c Config) LMSBrowserOptions() browser.Options {
	return c.browserOptions(c.LMS.PageTimeoutSeconds)
}

func (c Config) RecordsBrowserOptions() browser.Options {
	return c.browserOptions(c.Records.PageTimeoutSeconds)
}

func (c Config) MoodleOptions() moodle.Options {
	opts := moodle.DefaultOptions()
	opts.CourseDenyList = c.LMS.CourseDenyList
	opts.ExcludedKinds = c.LMS.ExcludedKinds
	opts.CourseConcurrency = c.LMS.CourseConcurrency
	opts.RequestsPerSecond = c.LMS.RequestsPerSecond
	opts.RequestTimeout = seconds(c.LMS.RequestTimeoutSeconds)
	opts.ItemTimeout = seconds(c.LMS.ItemTimeoutSeconds)
	opts.MaxPDFPages = c.LMS.MaxPDFPages
	opts.MaxBodyRunes = c.LMS.MaxBodyRunes
	opts.LoginAttempts = c.LMS.LoginAttempts
	opts.UserAgent = c.Browser.UserAgent
	opts.DumpDir = c.LMS.DumpDir
	return opts
}

func (c Config) RecordsOptions() records.Options {
	opts := records.DefaultOptions()
	opts.ScrollCycles = c.Records.ScrollCycles
	opts.CalendarMonths = c.Records.CalendarMonths
	opts.CalendarRewind = c.Records.CalendarRewind
	opts.MinScheduleEntries = c.Records.MinScheduleEntries
	opts.PageSettle = millis(c.Records.PageSettleMs)
	opts.LoginAttempts = c.Records.LoginAttempts
	return opts
}
