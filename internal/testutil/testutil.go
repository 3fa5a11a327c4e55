// Package testutil provides common test utilities and helpers to reduce boilerplate in test files.
package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/log"
)

// NewTestLogger creates a logger that writes to t.Logf for testing.
// This ensures test output is properly captured by the test framework.
func NewTestLogger(t testing.TB) log.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	handler := &testHandler{t: t, opts: opts}
	slogLogger := slog.New(handler)

	return log.FromSlog(slogLogger)
}

// ConfigOption allows customization of test config settings.
type ConfigOption func(*config.Settings)

// WithRepositoryDir sets a custom working tree path.
func WithRepositoryDir(dir string) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.RepositoryDir = dir
	}
}

// WithBackupEnabled controls backup creation during update sessions.
func WithBackupEnabled(enabled bool) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.BackupEnabled = enabled
	}
}

// WithWebhookSecret sets the shared webhook secret.
func WithWebhookSecret(secret string) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.Webhook.Secret = secret
	}
}

// NewMockConfig creates a config provider for testing with optional customizations.
func NewMockConfig(t testing.TB, opts ...ConfigOption) config.Provider {
	tmpDir := t.TempDir()

	cfg := &config.Settings{
		RepositoryDir:   tmpDir,
		ReleasePrefix:   config.DefaultReleasePrefix,
		BackupEnabled:   false,
		Verbose:         true,
		ProbeTimeout:    config.DefaultProbeTimeout,
		FetchTimeout:    config.DefaultFetchTimeout,
		CheckoutTimeout: config.DefaultCheckoutTimeout,
		DepsSyncTimeout: config.DefaultDepsSyncTimeout,
		PollInterval:    config.DefaultPollInterval,
		Webhook: config.WebhookSettings{
			Host:         config.DefaultWebhookHost,
			Port:         config.DefaultWebhookPort,
			TargetBranch: config.DefaultTargetBranch,
			LogCapacity:  config.DefaultLogCapacity,
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	configProvider := config.NewDefaultConfigProvider()
	configProvider.SetConfig(cfg)
	return configProvider
}

// testHandler implements slog.Handler to write to testing.TB.
type testHandler struct {
	t    testing.TB
	opts *slog.HandlerOptions
}

func (h *testHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testHandler) Handle(_ context.Context, record slog.Record) error {
	h.t.Logf("[%s] %s", record.Level.String(), record.Message)
	return nil
}

func (h *testHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return &testHandler{t: h.t, opts: h.opts}
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return &testHandler{t: h.t, opts: h.opts}
}
