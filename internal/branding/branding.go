// Package branding provides compile-time identity values for the CLI and the
// extension package contract.
//
// Forkers edit branding.yaml in this directory; Go's //go:embed bakes it into
// the binary. The package prefix, feature flag and source-class metadata key
// are part of the wire contract with extension packages, so changing them
// orphans every package built against the old values.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName          string `yaml:"cli_name"`
	DisplayName      string `yaml:"display_name"`
	Description      string `yaml:"description"`
	HomeDir          string `yaml:"home_dir"`
	EnvPrefix        string `yaml:"env_prefix"`
	GoModule         string `yaml:"go_module"`
	CatalogURL       string `yaml:"catalog_url"`
	PackagePrefix    string `yaml:"package_prefix"`
	ExtensionFeature string `yaml:"extension_feature"`
	SourceClassKey   string `yaml:"source_class_key"`
	LabelPrefix      string `yaml:"label_prefix"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:          "extmgr",
			DisplayName:      "ExtManager",
			Description:      "Extension lifecycle manager for content-source plugins",
			HomeDir:          ".extmgr",
			EnvPrefix:        "EXTMGR",
			GoModule:         "github.com/sourcekit/extmgr",
			CatalogURL:       "https://extensions.sourcekit.io/repo",
			PackagePrefix:    "io.sourcekit.extension.",
			ExtensionFeature: "sourcekit.extension",
			SourceClassKey:   "sourcekit.extension.class",
			LabelPrefix:      "SourceKit: ",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "extmgr").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "ExtManager").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".extmgr").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "EXTMGR").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// CatalogURL returns the default base URL of the extension catalog.
func CatalogURL() string { load(); return defaults.CatalogURL }

// PackagePrefix returns the package-name prefix shared by every extension,
// including the trailing dot (e.g., "io.sourcekit.extension.").
func PackagePrefix() string { load(); return defaults.PackagePrefix }

// ExtensionFeature returns the feature flag a package must declare to be
// considered an extension.
func ExtensionFeature() string { load(); return defaults.ExtensionFeature }

// SourceClassKey returns the manifest metadata key listing source entries.
func SourceClassKey() string { load(); return defaults.SourceClassKey }

// LabelPrefix returns the display prefix stripped from package labels.
func LabelPrefix() string { load(); return defaults.LabelPrefix }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "EXTMGR_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
