package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestCurrent_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EXTMGR_HOME", home)
	viper.Reset()
	t.Cleanup(viper.Reset)

	Load()
	s := Current()

	if s.InstallTimeout != DefaultInstallTimeout {
		t.Errorf("InstallTimeout = %v, want %v", s.InstallTimeout, DefaultInstallTimeout)
	}
	if s.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", s.PollInterval)
	}
	if s.LibVersionMin != 1 || s.LibVersionMax != 1 {
		t.Errorf("lib range = [%d, %d], want [1, 1]", s.LibVersionMin, s.LibVersionMax)
	}
	if want := filepath.Join(home, "packages"); s.PackagesDir != want {
		t.Errorf("PackagesDir = %q, want %q", s.PackagesDir, want)
	}
	if want := filepath.Join(home, "trusted.yaml"); s.TrustFile != want {
		t.Errorf("TrustFile = %q, want %q", s.TrustFile, want)
	}
}

func TestSetAndReload(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EXTMGR_HOME", home)
	viper.Reset()
	t.Cleanup(viper.Reset)

	Load()
	if err := Set(KeyCatalogURL, "https://mirror.example.com/repo"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(FilePath()); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	viper.Reset()
	Load()
	if got := Current().CatalogURL; got != "https://mirror.example.com/repo" {
		t.Errorf("CatalogURL = %q after reload", got)
	}
}

func TestCurrent_EnvOverride(t *testing.T) {
	t.Setenv("EXTMGR_HOME", t.TempDir())
	t.Setenv("EXTMGR_INSTALL_TIMEOUT", "30s")
	viper.Reset()
	t.Cleanup(viper.Reset)

	Load()
	if got := Current().InstallTimeout; got != 30*time.Second {
		t.Errorf("InstallTimeout = %v, want 30s", got)
	}
}
