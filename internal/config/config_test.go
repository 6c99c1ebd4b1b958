package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"campussync/internal/extract"
	"campussync/internal/scrapers/records"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := `{
		database: { file: "data/sync.db" },
		browser: { headless: false },
		lms: { base_url: "https://ava.example.edu", course_concurrency: 4 },
		records: {
			base_url: "https://portal.example.edu/aluno/",
			scroll_cycles: { grades: 40 },
			calendar_rewind: 2,
		},
		heuristics: { grade_lookback: 9 },
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(file), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CAMPUSSYNC_LISTEN=:9999\n"), 0o644))
	chdir(t, dir)

	t.Setenv("CHROME_PATH", "/opt/chrome/chrome")
	t.Setenv(envListen, "")
	os.Unsetenv(envListen)

	cfg, err := Load(DefaultFile)
	require.NoError(t, err)

	require.Equal(t, "data/sync.db", cfg.Database.File)
	require.Equal(t, ":9999", cfg.Listen)
	require.Equal(t, "/opt/chrome/chrome", cfg.Browser.ExecPath)

	lmsBrowser := cfg.LMSBrowserOptions()
	require.False(t, lmsBrowser.Headless)
	require.Equal(t, 30*time.Second, lmsBrowser.ActionTimeout)
	require.Equal(t, 90*time.Second, cfg.RecordsBrowserOptions().ActionTimeout)

	moodleOpts := cfg.MoodleOptions()
	require.Equal(t, 4, moodleOpts.CourseConcurrency)
	require.Equal(t, []string{"Biblioteca"}, moodleOpts.CourseDenyList)
	require.Equal(t, 45*time.Second, moodleOpts.ItemTimeout)

	recordsOpts := cfg.RecordsOptions()
	defaults := records.DefaultOptions()
	require.Equal(t, 40, recordsOpts.ScrollCycles.Grades)
	require.Equal(t, defaults.ScrollCycles.Attendance, recordsOpts.ScrollCycles.Attendance)
	require.Equal(t, 2, recordsOpts.CalendarRewind)
	require.Equal(t, defaults.CalendarMonths, recordsOpts.CalendarMonths)
	require.Equal(t, defaults.PageSettle, recordsOpts.PageSettle)

	require.Equal(t, 9, cfg.Heuristics.GradeLookback)
	require.Equal(t, extract.DefaultHeuristics().SubjectKeywords, cfg.Heuristics.SubjectKeywords)
	require.Equal(t, 0.93, cfg.Validate.SubjectSimilarity)
}

func TestLoadWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(envDatabaseUrl, "libsql://campussync.example.io")

	cfg, err := Load("missing.json5")
	require.NoError(t, err)
	require.Equal(t, "libsql://campussync.example.io", cfg.Database.Url)
	require.Equal(t, ":8080", cfg.Listen)
	require.True(t, cfg.LMSBrowserOptions().Headless)
}
