package pkghost

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourcekit/extmgr/internal/manifest"
)

// Sign writes signer.pub and extension.sig for the manifest in dir.
func Sign(dir string, key ed25519.PrivateKey) error {
	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	pub := key.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(key, data)

	if err := writeBase64(filepath.Join(dir, SignerFile), pub); err != nil {
		return err
	}
	return writeBase64(filepath.Join(dir, SignatureFile), sig)
}

// Verify checks the manifest signature in dir and returns the signer key.
func Verify(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	pub, err := readBase64(filepath.Join(dir, SignerFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	sig, err := readBase64(filepath.Join(dir, SignatureFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: signer key has %d bytes", ErrBadSignature, len(pub))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), data, sig) {
		return nil, ErrBadSignature
	}
	return pub, nil
}

func writeBase64(path string, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data) + "\n"
	if err := os.WriteFile(path, []byte(enc), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
