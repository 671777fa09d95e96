package platform

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestChmod(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.txt")
	if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Chmod(path, 0600); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("permissions = %o, want %o", perm, 0600)
		}
	}
}

func TestNormalizePerm(t *testing.T) {
	tests := []struct {
		mode fs.FileMode
		want fs.FileMode
	}{
		{0644, FilePerm},
		{0600, FilePerm},
		{0755, ExecPerm},
		{0700, ExecPerm},
		{0741, ExecPerm},
	}
	for _, tt := range tests {
		if got := NormalizePerm(tt.mode); got != tt.want {
			t.Errorf("NormalizePerm(%o) = %o, want %o", tt.mode, got, tt.want)
		}
	}
}

func TestIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	tmp := t.TempDir()

	script := filepath.Join(tmp, "run")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(tmp, "data")
	if err := os.WriteFile(plain, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		want    bool
		wantErr bool
	}{
		{"executable file", script, true, false},
		{"plain file", plain, false, false},
		{"directory", tmp, false, false},
		{"missing", filepath.Join(tmp, "nope"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsExecutable(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsExecutable = %v, want %v", got, tt.want)
			}
		})
	}
}
