// Package pkghosttest builds signed extension packages for tests.
package pkghosttest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcekit/extmgr/internal/manifest"
	"github.com/sourcekit/extmgr/internal/pkghost"
)

// Fixture describes a test package.
type Fixture struct {
	Package     string
	Name        string
	VersionName string
	VersionCode int
	LibVersion  string
	Runtime     string // defaults to builtin
	Classes     string // value of the source class metadata key
	NoFeature   bool
	// Files are extra package files keyed by slash-separated path.
	Files map[string]string
}

// Key returns a deterministic signing key derived from seed.
func Key(seed string) ed25519.PrivateKey {
	s := sha256.Sum256([]byte(seed))
	return ed25519.NewKeyFromSeed(s[:])
}

// Hash returns the signature hash of the key derived from seed.
func Hash(seed string) string {
	return pkghost.SignatureHash(Key(seed).Public().(ed25519.PublicKey))
}

// Manifest renders fx as extension.yaml.
func Manifest(fx Fixture) string {
	if fx.Runtime == "" {
		fx.Runtime = manifest.RuntimeBuiltin
	}
	if fx.VersionName == "" {
		fx.VersionName = "1.0"
	}
	if fx.Name == "" {
		fx.Name = "SourceKit: " + fx.Package
	}
	var b strings.Builder
	fmt.Fprintf(&b, "name: %q\n", fx.Name)
	fmt.Fprintf(&b, "package: %s\n", fx.Package)
	fmt.Fprintf(&b, "version_name: %q\n", fx.VersionName)
	fmt.Fprintf(&b, "version_code: %d\n", fx.VersionCode)
	if fx.LibVersion != "" {
		fmt.Fprintf(&b, "lib_version: %q\n", fx.LibVersion)
	}
	fmt.Fprintf(&b, "runtime: %s\n", fx.Runtime)
	if !fx.NoFeature {
		b.WriteString("features: [sourcekit.extension]\n")
	}
	b.WriteString("metadata:\n")
	fmt.Fprintf(&b, "  sourcekit.extension.class: %q\n", fx.Classes)
	return b.String()
}

// WriteDir materializes fx, signed with the key derived from seed, into
// dir. It can be used to place a package directly under a packages root.
func WriteDir(t testing.TB, dir string, fx Fixture, seed string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(Manifest(fx)), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, content := range fx.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		perm := os.FileMode(0o644)
		if strings.HasPrefix(name, "bin/") {
			perm = 0o755
		}
		if err := os.WriteFile(path, []byte(content), perm); err != nil {
			t.Fatal(err)
		}
	}
	if err := pkghost.Sign(dir, Key(seed)); err != nil {
		t.Fatal(err)
	}
}

// Install places a signed package directly under root, bypassing the host.
func Install(t testing.TB, root string, fx Fixture, seed string) {
	t.Helper()
	WriteDir(t, filepath.Join(root, fx.Package), fx, seed)
}

// Artifact builds a signed zip archive for fx and returns its path.
func Artifact(t testing.TB, fx Fixture, seed string) string {
	t.Helper()
	work := t.TempDir()
	src := filepath.Join(work, "src")
	WriteDir(t, src, fx, seed)
	out := filepath.Join(work, fx.Package+".zip")
	if err := pkghost.Pack(src, out); err != nil {
		t.Fatal(err)
	}
	return out
}
