package pkghost

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcekit/extmgr/internal/manifest"
)

// Files every package carries next to its manifest.
const (
	SignerFile    = "signer.pub"
	SignatureFile = "extension.sig"
)

var (
	// ErrNotFound is returned for packages that are not installed.
	ErrNotFound = errors.New("package not installed")
	// ErrBadSignature is returned when the manifest signature does not verify.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrSignerMismatch is returned when an update is signed by another key.
	ErrSignerMismatch = errors.New("package signed by a different key")
)

// Package is an installed package as seen by the host.
type Package struct {
	Name      string
	Dir       string
	Manifest  *manifest.Manifest
	SignerKey []byte
}

// SignatureHash identifies the package signer.
func (p *Package) SignatureHash() string {
	return SignatureHash(p.SignerKey)
}

// SignatureHash returns the hex SHA-256 of a signer public key.
func SignatureHash(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

func readPackage(dir string) (*Package, error) {
	m, err := manifest.ParseFile(filepath.Join(dir, manifest.FileName))
	if err != nil {
		return nil, err
	}
	key, err := readBase64(filepath.Join(dir, SignerFile))
	if err != nil {
		return nil, err
	}
	return &Package{Name: m.Package, Dir: dir, Manifest: m, SignerKey: key}, nil
}

func readBase64(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	out, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// validPackageName rejects names that would escape the packages root.
func validPackageName(name string) bool {
	return name != "" &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.Base(name) == name
}
