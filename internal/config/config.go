package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Configuration keys.
const (
	KeyCatalogURL     = "catalog_url"
	KeyPackagesDir    = "packages_dir"
	KeyDownloadsDir   = "downloads_dir"
	KeyTrustFile      = "trust_file"
	KeyInstallTimeout = "install_timeout"
	KeyPollInterval   = "poll_interval"
	KeyLibVersionMin  = "lib_version_min"
	KeyLibVersionMax  = "lib_version_max"
	KeyCatalogMaxAge  = "catalog_max_age"
	KeyLogVerbosity   = "log_verbosity"
)

// Defaults for keys that are not directory paths.
const (
	DefaultInstallTimeout = 3 * time.Minute
	DefaultPollInterval   = time.Second
	DefaultLibVersionMin  = 1
	DefaultLibVersionMax  = 1
	DefaultCatalogMaxAge  = 24 * time.Hour
)

// Settings is a typed snapshot of the effective configuration.
type Settings struct {
	CatalogURL     string
	PackagesDir    string
	DownloadsDir   string
	TrustFile      string
	InstallTimeout time.Duration
	PollInterval   time.Duration
	LibVersionMin  int
	LibVersionMax  int
	CatalogMaxAge  time.Duration
	LogVerbosity   int
}

// Dir returns the path to the config directory (~/.extmgr/).
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.extmgr/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()
	setDefaults()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

func setDefaults() {
	dir := Dir()
	viper.SetDefault(KeyCatalogURL, branding.CatalogURL())
	viper.SetDefault(KeyPackagesDir, filepath.Join(dir, "packages"))
	viper.SetDefault(KeyDownloadsDir, filepath.Join(dir, "downloads"))
	viper.SetDefault(KeyTrustFile, filepath.Join(dir, "trusted.yaml"))
	viper.SetDefault(KeyInstallTimeout, DefaultInstallTimeout)
	viper.SetDefault(KeyPollInterval, DefaultPollInterval)
	viper.SetDefault(KeyLibVersionMin, DefaultLibVersionMin)
	viper.SetDefault(KeyLibVersionMax, DefaultLibVersionMax)
	viper.SetDefault(KeyCatalogMaxAge, DefaultCatalogMaxAge)
	viper.SetDefault(KeyLogVerbosity, 0)
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Current returns the effective settings. Load must be called first for the
// config file and environment to be taken into account.
func Current() Settings {
	setDefaults()
	s := Settings{
		CatalogURL:     viper.GetString(KeyCatalogURL),
		PackagesDir:    viper.GetString(KeyPackagesDir),
		DownloadsDir:   viper.GetString(KeyDownloadsDir),
		TrustFile:      viper.GetString(KeyTrustFile),
		InstallTimeout: viper.GetDuration(KeyInstallTimeout),
		PollInterval:   viper.GetDuration(KeyPollInterval),
		LibVersionMin:  viper.GetInt(KeyLibVersionMin),
		LibVersionMax:  viper.GetInt(KeyLibVersionMax),
		CatalogMaxAge:  viper.GetDuration(KeyCatalogMaxAge),
		LogVerbosity:   viper.GetInt(KeyLogVerbosity),
	}
	if s.InstallTimeout <= 0 {
		s.InstallTimeout = DefaultInstallTimeout
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.LibVersionMax < s.LibVersionMin {
		s.LibVersionMax = s.LibVersionMin
	}
	return s
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
