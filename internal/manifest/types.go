package manifest

import (
	"slices"
	"strings"

	"github.com/sourcekit/extmgr/internal/branding"
)

// FileName is the manifest file at the root of every extension package.
const FileName = "extension.yaml"

// Runtime names accepted in the runtime field.
const (
	RuntimeBuiltin = "builtin"
	RuntimeExec    = "exec"
)

// Manifest describes one extension package.
type Manifest struct {
	Name        string            `yaml:"name" json:"name"`
	Package     string            `yaml:"package" json:"package"`
	VersionName string            `yaml:"version_name" json:"version_name"`
	VersionCode int               `yaml:"version_code" json:"version_code"`
	LibVersion  string            `yaml:"lib_version,omitempty" json:"lib_version,omitempty"`
	Runtime     string            `yaml:"runtime" json:"runtime"`
	Features    []string          `yaml:"features,omitempty" json:"features,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// DisplayName returns the label with the branding prefix stripped.
func (m *Manifest) DisplayName() string {
	return strings.TrimPrefix(m.Name, branding.LabelPrefix())
}

// HasFeature reports whether the manifest declares feature.
func (m *Manifest) HasFeature(feature string) bool {
	return slices.Contains(m.Features, feature)
}

// IsExtension reports whether the package declares the extension feature.
func (m *Manifest) IsExtension() bool {
	return m.HasFeature(branding.ExtensionFeature())
}

// EffectiveLibVersion returns lib_version, falling back to version_name.
func (m *Manifest) EffectiveLibVersion() string {
	if m.LibVersion != "" {
		return m.LibVersion
	}
	return m.VersionName
}

// ClassEntries returns the fully qualified entry points declared under the
// source class metadata key. Entries are separated by ';' and an entry with
// a leading '.' is relative to the package name.
func (m *Manifest) ClassEntries() []string {
	raw := m.Metadata[branding.SourceClassKey()]
	var out []string
	for entry := range strings.SplitSeq(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, ".") {
			entry = m.Package + entry
		}
		out = append(out, entry)
	}
	return out
}
