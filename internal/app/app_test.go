package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{
			Provider: "memory",
		},
		Scraping: config.ScrapingConfig{
			TimeoutSeconds:    5,
			RetryAttempts:     1,
			RetryDelaySeconds: 1,
			UserAgent:         "test-agent",
		},
		Sources: map[string]config.SourceConfig{
			"house_tabled": {URL: "https://example.test/tabled", Chamber: "House of Assembly"},
			"bills":        {URL: "https://example.test/bills"},
		},
		Monitoring: config.MonitoringConfig{
			Frequencies:      map[string]int{"tabled_papers": 15},
			FullCycleMinutes: 60,
		},
		Publisher: config.PublisherConfig{Provider: "memory", Topic: "alerts"},
		Archive:   config.ArchiveConfig{Provider: "noop"},
	}
}

func TestNewApp_MemoryProviders(t *testing.T) {
	t.Parallel()

	a, err := NewApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Pipeline)
	require.NotNil(t, a.Scheduler)
	require.Len(t, a.Sources, 2)
	require.ElementsMatch(t, []string{"bills", "house_tabled"}, a.Pipeline.SourceNames())
}

func TestNewApp_SQLiteProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Database.Provider = "sqlite"
	cfg.Database.Path = t.TempDir() + "/monitor.db"

	a, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	a.Close()
}

func TestNewApp_UnknownProviders(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Database.Provider = "cassandra"
	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unknown database provider")

	cfg = testConfig()
	cfg.Publisher.Provider = "kafka"
	_, err = NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unknown publisher provider")

	cfg = testConfig()
	cfg.Archive.Provider = "s3"
	_, err = NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unknown archive provider")
}

func TestNewApp_NoSources(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sources = nil
	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "no usable sources")
}

func TestNewApp_DisabledNotificationsUseNoop(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Notifications = config.NotificationsConfig{Enabled: false, Transport: "telegram"}

	a, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	a.Close()
}
