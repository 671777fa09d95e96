package pkghost

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExtract_TarGz(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "pkg.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"extension.yaml": "name: x\n",
		"bin/Entry":      "#!/bin/sh\n",
	})

	dest := t.TempDir()
	if err := Extract(archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "extension.yaml"))
	if err != nil || string(data) != "name: x\n" {
		t.Errorf("extension.yaml = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dest, "bin", "Entry")); err != nil {
		t.Errorf("nested entry missing: %v", err)
	}
}

func TestExtract_TarGzTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{"../../etc/evil": "x"})
	if err := Extract(archive, t.TempDir()); err == nil {
		t.Fatal("expected traversal error")
	}
}

func TestPackExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "bin"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "bin", "Run"), []byte("run"), 0755); err != nil {
		t.Fatal(err)
	}
	archive := filepath.Join(t.TempDir(), "pkg.zip")
	if err := Pack(src, archive); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	dest := t.TempDir()
	if err := Extract(archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dest, "bin", "Run")); err != nil || string(data) != "run" {
		t.Errorf("bin/Run = %q, %v", data, err)
	}
}

func TestValidPackageName(t *testing.T) {
	tests := map[string]bool{
		"io.sourcekit.extension.en.foo": true,
		"":                              false,
		"../etc":                        false,
		".hidden":                       false,
		"a/b":                           false,
	}
	for name, want := range tests {
		if got := validPackageName(name); got != want {
			t.Errorf("validPackageName(%q) = %v, want %v", name, got, want)
		}
	}
}
