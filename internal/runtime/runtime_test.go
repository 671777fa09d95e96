package runtime

import (
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"testing"

	"github.com/sourcekit/extmgr/internal/manifest"
	"github.com/sourcekit/extmgr/internal/source"
)

func TestDispatchRuntime(t *testing.T) {
	if _, ok := DispatchRuntime("builtin").(*BuiltinRuntime); !ok {
		t.Error("builtin should dispatch to *BuiltinRuntime")
	}
	if _, ok := DispatchRuntime("exec").(*ExecRuntime); !ok {
		t.Error("exec should dispatch to *ExecRuntime")
	}

	rt := DispatchRuntime("jvm")
	if _, ok := rt.(*unknownRuntime); !ok {
		t.Fatalf("DispatchRuntime(\"jvm\") returned %T, want *unknownRuntime", rt)
	}
	if _, err := rt.Instantiate(context.Background(), "", &manifest.Manifest{}, "x.Y"); err == nil {
		t.Error("expected error from unknown runtime, got nil")
	}
}

type builtinSource struct{}

func (builtinSource) ID() int64    { return 42 }
func (builtinSource) Name() string { return "Builtin" }

func TestBuiltinRuntime(t *testing.T) {
	const class = "io.sourcekit.extension.en.test.Builtin"
	RegisterBuiltin(class, func() any { return builtinSource{} })
	t.Cleanup(func() { UnregisterBuiltin(class) })

	rt := &BuiltinRuntime{}
	v, err := rt.Instantiate(context.Background(), "", &manifest.Manifest{}, class)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if s, ok := v.(source.Source); !ok || s.ID() != 42 {
		t.Errorf("Instantiate returned %#v", v)
	}

	if _, err := rt.Instantiate(context.Background(), "", &manifest.Manifest{}, class+"Missing"); err == nil {
		t.Error("expected error for unregistered class")
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID("Foo", "en", 1)
	if a != GenerateID("foo", "en", 1) {
		t.Error("id should not depend on name case")
	}
	if a == GenerateID("Foo", "ja", 1) {
		t.Error("id should depend on language")
	}
	if a < 0 {
		t.Errorf("id out of range: %d", a)
	}
}

func TestEntryPath(t *testing.T) {
	got := EntryPath("/pkgs/p", "io.sourcekit.extension.en.foo.FooFactory")
	want := filepath.Join("/pkgs/p", "bin", "FooFactory")
	if got != want {
		t.Errorf("EntryPath = %s, want %s", got, want)
	}
}

// writeScript creates an executable shell script entry point under dir/bin.
func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	bin := filepath.Join(dir, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestExecRuntime_Source(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "Foo", `case "$1" in
describe) echo '{"kind":"source","sources":[{"name":"Foo","lang":"en","capabilities":["login"]}]}' ;;
login) cat >/dev/null; echo '{"ok":true}' ;;
esac
`)

	m := &manifest.Manifest{Package: "io.sourcekit.extension.en.foo"}
	v, err := (&ExecRuntime{}).Instantiate(context.Background(), dir, m, "io.sourcekit.extension.en.foo.Foo")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	cs, ok := v.(source.CatalogueSource)
	if !ok {
		t.Fatalf("expected CatalogueSource, got %T", v)
	}
	if cs.Lang() != "en" || cs.Name() != "Foo" {
		t.Errorf("got %s/%s", cs.Name(), cs.Lang())
	}
	if cs.ID() != GenerateID("Foo", "en", 1) {
		t.Errorf("missing id should be derived, got %d", cs.ID())
	}
	if _, ok := v.(source.Configurable); ok {
		t.Error("source without the capability should not be Configurable")
	}
	lc, ok := v.(source.LoginCapable)
	if !ok {
		t.Fatal("expected LoginCapable")
	}
	if err := lc.Login(context.Background(), "user", "secret"); err != nil {
		t.Errorf("Login: %v", err)
	}
}

func TestExecRuntime_Factory(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "FooFactory", `case "$1" in
describe) echo '{"kind":"factory","sources":[{"id":1,"name":"A","lang":"en","capabilities":["configurable","login"]},{"id":2,"name":"B","lang":"ja"}]}' ;;
configure) cat >/dev/null; echo '{"ok":false,"error":"unknown key"}' ;;
esac
`)

	m := &manifest.Manifest{Package: "p.x"}
	v, err := (&ExecRuntime{}).Instantiate(context.Background(), dir, m, "p.x.FooFactory")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	f, ok := v.(source.Factory)
	if !ok {
		t.Fatalf("expected Factory, got %T", v)
	}
	sources, err := f.CreateSources()
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[0].ID() != 1 || sources[1].ID() != 2 {
		t.Fatalf("unexpected sources: %v", sources)
	}

	conf, ok := sources[0].(source.Configurable)
	if !ok {
		t.Fatal("first source should be Configurable")
	}
	if _, ok := sources[0].(source.LoginCapable); !ok {
		t.Error("first source should be LoginCapable")
	}
	if err := conf.Configure(context.Background(), map[string]string{"k": "v"}); err == nil {
		t.Error("expected rejected configure to return an error")
	}
}

func TestExecRuntime_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		script string
		isErr  bool
	}{
		{"missing entry", "", true},
		{"bad json", "echo not-json\n", true},
		{"source with two entries", `echo '{"kind":"source","sources":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}'` + "\n", true},
		{"non-zero exit", "echo boom >&2; exit 3\n", true},
		{"unknown kind", `echo '{"kind":"widget","sources":[]}'` + "\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.script != "" {
				writeScript(t, dir, "Entry", tt.script)
			}
			v, err := (&ExecRuntime{}).Instantiate(context.Background(), dir, &manifest.Manifest{Package: "p"}, "p.Entry")
			if tt.isErr {
				if err == nil {
					t.Fatalf("expected error, got %T", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := v.(source.Source); ok {
				t.Error("unknown kind should not yield a Source")
			}
			if _, ok := v.(source.Factory); ok {
				t.Error("unknown kind should not yield a Factory")
			}
		})
	}
}
