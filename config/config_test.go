package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	noDotEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "@every 10m", cfg.Scheduler.RefreshCron)
	assert.Equal(t, 60*time.Second, cfg.Stats.CacheTTL)
	assert.Equal(t, 6, cfg.Stats.RevenueMonths)
	assert.True(t, cfg.Stats.CountDropped)
	assert.True(t, cfg.Stats.CountSuspended)
	assert.Equal(t, "redis", cfg.EventBus.Driver)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())

	pg := cfg.Database.PostgresConfig()
	assert.Equal(t, "learnhub", pg.Database)
	assert.Equal(t, time.Minute, pg.HealthCheckPeriod)
}

func TestLoad_StatsPolicy(t *testing.T) {
	noDotEnv(t)
	t.Setenv("STATS_TIMEZONE", "Asia/Almaty")
	t.Setenv("STATS_REVENUE_MONTHS", "3")
	t.Setenv("STATS_COUNT_DROPPED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Stats.Policy()
	assert.Equal(t, "Asia/Almaty", p.Location.String())
	assert.Equal(t, 3, p.RevenueWindows)
	assert.False(t, p.CountDropped)
	assert.True(t, p.CountSuspended)
}

func TestLoad_InvalidStatsTimezone(t *testing.T) {
	noDotEnv(t)
	t.Setenv("STATS_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.ErrorContains(t, err, "STATS_TIMEZONE")
}

func TestLoad_RedisDisabledFallsBackToMemoryBus(t *testing.T) {
	noDotEnv(t)
	t.Setenv("REDIS_DISABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.EventBus.Driver)
}

func TestLoad_ReadsDotEnvInDevelopment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STATS_WINDOW_DAYS=28\n"), 0o600))
	t.Setenv("DOTENV_PATH", path)
	t.Cleanup(func() { os.Unsetenv("STATS_WINDOW_DAYS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 28, cfg.Stats.WindowDays)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	noDotEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.HTTP.Port = 0
	cfg.Stats.RevenueMonths = 0
	cfg.Redis.Disabled = true
	cfg.EventBus.Driver = "redis"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "STATS_REVENUE_MONTHS")
	assert.Contains(t, err.Error(), "EVENT_BUS_DRIVER=redis")
}

func TestFeatureFlags_Environment(t *testing.T) {
	t.Setenv("FEATURE_STATS_CACHE", "false")
	t.Setenv("FEATURE_REVIEW_SUBMISSION", "0")
	t.Setenv("FEATURE_CERTIFICATE_ISSUANCE", "40")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureStatsCache, nil))
	assert.False(t, ff.Checker(FeatureReviewSubmission)())
	assert.True(t, ff.IsEnabled(FeatureAsyncCourseRefresh, nil))
	assert.True(t, ff.IsEnabled(FeatureCertificateIssuance, nil))
	assert.False(t, ff.IsEnabled("unknown", nil))
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureCertificateIssuance, 50))

	enabled := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{UserID: "user-" + string(rune('a'+i%26)) + string(rune('a'+i/26))}
		first := ff.IsEnabled(FeatureCertificateIssuance, ctx)
		assert.Equal(t, first, ff.IsEnabled(FeatureCertificateIssuance, ctx))
		if first {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 200)

	assert.True(t, ff.IsEnabled(FeatureCertificateIssuance, &FeatureContext{UserID: "x", IsAdmin: true}))
}

func TestFeatureFlags_Overrides(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureReviewSubmission))

	ff.SetUserOverride("u-1", FeatureReviewSubmission, true)
	assert.True(t, ff.IsEnabled(FeatureReviewSubmission, &FeatureContext{UserID: "u-1"}))
	assert.False(t, ff.IsEnabled(FeatureReviewSubmission, &FeatureContext{UserID: "u-2"}))

	ff.ClearUserOverrides("u-1")
	assert.False(t, ff.IsEnabled(FeatureReviewSubmission, &FeatureContext{UserID: "u-1"}))

	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureStatsCache, 101), ErrInvalidRolloutPercent)
	assert.Len(t, ff.GetAllFeatures(), 4)
}
