// Package config provides configuration management for pubsub-ops
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Provider defines the interface for configuration providers.
type Provider interface {
	// GetConfig returns the current application configuration.
	GetConfig() *Settings
	// SetConfig sets the application configuration.
	SetConfig(c *Settings)
	// InitConfig initializes the application configuration.
	InitConfig() *Settings
	// SetConfigFilePath sets the configuration file path.
	SetConfigFilePath(p string)
}

// defaultConfigProvider implements the Provider interface.
type defaultConfigProvider struct {
	cfg *Settings
}

// NewDefaultConfigProvider creates a new default config provider.
func NewDefaultConfigProvider() Provider {
	return &defaultConfigProvider{}
}

// NewProviderWith returns a provider pre-seeded with cfg.
func NewProviderWith(cfg *Settings) Provider {
	p := NewDefaultConfigProvider()
	p.SetConfig(cfg)
	return p
}

var defaultProvider = NewDefaultConfigProvider()

// Default configuration values for the pubsub-ops system. Timeouts are
// per-stage budgets: a fetch that exceeds FetchTimeout fails the fetch
// stage, it does not abort the process.
const (
	DefaultRepositoryDir   = "/opt/iot-pubsub-gui"
	DefaultAppEntry        = "iot_pubsub_gui.py"
	DefaultReleasePrefix   = "release/"
	DefaultBackupEnabled   = true
	DefaultVerbose         = false
	DefaultProbeTimeout    = 5 * time.Second
	DefaultFetchTimeout    = 30 * time.Second
	DefaultCheckoutTimeout = 10 * time.Second
	DefaultDepsSyncTimeout = 5 * time.Minute
	DefaultPollInterval    = 5 * time.Minute
	DefaultDBPath          = "/var/lib/pubsub-ops/pubsub-ops.db"
	DefaultUserDBPath      = "$HOME/.local/share/pubsub-ops/pubsub-ops.db"
	DefaultWebhookHost     = "0.0.0.0"
	DefaultWebhookPort     = 9000
	DefaultTargetBranch    = "main"
	DefaultLogCapacity     = 100
)

// WebhookSettings holds configuration for the remote trigger endpoint.
// Secret is the shared HMAC key for push-event verification; when empty,
// requests are accepted unverified and the listener warns loudly at startup.
type WebhookSettings struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Secret       string `yaml:"secret"`
	TargetBranch string `yaml:"targetBranch"`
	LogCapacity  int    `yaml:"logCapacity"`
}

// Settings represents the configuration for the pubsub-ops system.
type Settings struct {
	RepositoryDir   string          `yaml:"repositoryDir"`
	AppEntry        string          `yaml:"appEntry"`
	ReleasePrefix   string          `yaml:"releasePrefix"`
	BackupEnabled   bool            `yaml:"backupEnabled"`
	BackupDir       string          `yaml:"backupDir"`
	Verbose         bool            `yaml:"verbose"`
	ProbeTimeout    time.Duration   `yaml:"probeTimeout"`
	FetchTimeout    time.Duration   `yaml:"fetchTimeout"`
	CheckoutTimeout time.Duration   `yaml:"checkoutTimeout"`
	DepsSyncTimeout time.Duration   `yaml:"depsSyncTimeout"`
	PollInterval    time.Duration   `yaml:"pollInterval"`
	DBPath          string          `yaml:"dbPath"`
	Webhook         WebhookSettings `yaml:"webhook"`
}

func (p *defaultConfigProvider) SetConfig(c *Settings) {
	p.cfg = c
}

func (p *defaultConfigProvider) GetConfig() *Settings {
	return p.cfg
}

func (p *defaultConfigProvider) SetConfigFilePath(path string) {
	viper.SetConfigFile(path)
}

func (p *defaultConfigProvider) InitConfig() *Settings {
	p.cfg = initConfigInternal()
	return p.cfg
}

// SetConfig sets the application configuration.
func SetConfig(c *Settings) {
	defaultProvider.SetConfig(c)
}

// GetConfig returns the current application configuration.
func GetConfig() *Settings {
	return defaultProvider.GetConfig()
}

// SetConfigFilePath sets the configuration file path.
func SetConfigFilePath(p string) {
	defaultProvider.SetConfigFilePath(p)
}

// InitConfig initializes the application configuration.
func InitConfig() *Settings {
	return defaultProvider.InitConfig()
}

// Internal function to initialize configuration.
func initConfigInternal() *Settings {
	cfg := &Settings{
		RepositoryDir:   DefaultRepositoryDir,
		AppEntry:        DefaultAppEntry,
		ReleasePrefix:   DefaultReleasePrefix,
		BackupEnabled:   DefaultBackupEnabled,
		Verbose:         DefaultVerbose,
		ProbeTimeout:    DefaultProbeTimeout,
		FetchTimeout:    DefaultFetchTimeout,
		CheckoutTimeout: DefaultCheckoutTimeout,
		DepsSyncTimeout: DefaultDepsSyncTimeout,
		PollInterval:    DefaultPollInterval,
		DBPath:          DefaultDBPath,
		Webhook: WebhookSettings{
			Host:         DefaultWebhookHost,
			Port:         DefaultWebhookPort,
			TargetBranch: DefaultTargetBranch,
			LogCapacity:  DefaultLogCapacity,
		},
	}

	viper.SetDefault("repositoryDir", DefaultRepositoryDir)
	viper.SetDefault("appEntry", DefaultAppEntry)
	viper.SetDefault("releasePrefix", DefaultReleasePrefix)
	viper.SetDefault("backupEnabled", DefaultBackupEnabled)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("probeTimeout", DefaultProbeTimeout)
	viper.SetDefault("fetchTimeout", DefaultFetchTimeout)
	viper.SetDefault("checkoutTimeout", DefaultCheckoutTimeout)
	viper.SetDefault("depsSyncTimeout", DefaultDepsSyncTimeout)
	viper.SetDefault("pollInterval", DefaultPollInterval)
	viper.SetDefault("dbPath", DefaultDBPath)
	viper.SetDefault("webhook.host", DefaultWebhookHost)
	viper.SetDefault("webhook.port", DefaultWebhookPort)
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.targetBranch", DefaultTargetBranch)
	viper.SetDefault("webhook.logCapacity", DefaultLogCapacity)

	// Fleet deployments configure the listener through the environment,
	// matching the systemd unit that ships with the GUI.
	_ = viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	_ = viper.BindEnv("webhook.host", "WEBHOOK_HOST")
	_ = viper.BindEnv("webhook.port", "WEBHOOK_PORT")
	_ = viper.BindEnv("webhook.targetBranch", "GIT_BRANCH")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(os.ExpandEnv("$HOME/.config/pubsub-ops"))
	viper.AddConfigPath("/etc/opt/pubsub-ops")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		panic(err)
	}

	return cfg
}
