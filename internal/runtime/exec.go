package runtime

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/manifest"
	"github.com/sourcekit/extmgr/internal/platform"
	"github.com/sourcekit/extmgr/internal/source"
)

// Describe protocol values.
const (
	KindSource  = "source"
	KindFactory = "factory"

	CapConfigurable = "configurable"
	CapLogin        = "login"
)

const defaultExecTimeout = 30 * time.Second

// ExecRuntime runs entry points as executables under <pkgDir>/bin. Each
// executable answers "describe" with a JSON document listing its sources.
type ExecRuntime struct {
	// Timeout bounds each invocation. Zero means 30s.
	Timeout time.Duration
}

type describeOutput struct {
	Kind    string             `json:"kind"`
	Sources []sourceDescriptor `json:"sources"`
}

type sourceDescriptor struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Lang         string   `json:"lang"`
	Capabilities []string `json:"capabilities"`
}

type opResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Instantiate runs "<entry> describe" and returns a source.Source for kind
// "source" or a source.Factory for kind "factory".
func (r *ExecRuntime) Instantiate(ctx context.Context, pkgDir string, m *manifest.Manifest, class string) (any, error) {
	entry := EntryPath(pkgDir, class)
	ok, err := platform.IsExecutable(entry)
	if err != nil {
		return nil, fmt.Errorf("entry point not found at %s: %w", entry, err)
	}
	if !ok {
		return nil, fmt.Errorf("entry point %s is not executable", entry)
	}

	out, err := r.invoke(ctx, entry, m.Package, pkgDir, nil, "describe")
	if err != nil {
		return nil, err
	}

	var desc describeOutput
	if err := json.Unmarshal(out, &desc); err != nil {
		return nil, fmt.Errorf("decoding describe output of %s: %w", class, err)
	}

	sources := make([]source.Source, 0, len(desc.Sources))
	for _, d := range desc.Sources {
		if d.Name == "" {
			return nil, fmt.Errorf("%s: source without a name", class)
		}
		if d.ID == 0 {
			d.ID = GenerateID(d.Name, d.Lang, 1)
		}
		sources = append(sources, r.newSource(d, entry, m.Package, pkgDir))
	}

	switch desc.Kind {
	case KindSource:
		if len(sources) != 1 {
			return nil, fmt.Errorf("%s: kind %q must describe exactly one source, got %d", class, KindSource, len(sources))
		}
		return sources[0], nil
	case KindFactory:
		return &execFactory{sources: sources}, nil
	default:
		// Neither a source nor a factory; the caller rejects it.
		return desc, nil
	}
}

// EntryPath maps a fully qualified class name to its executable.
func EntryPath(pkgDir, class string) string {
	simple := class
	if i := strings.LastIndex(class, "."); i >= 0 {
		simple = class[i+1:]
	}
	return filepath.Join(pkgDir, "bin", simple)
}

// GenerateID derives a stable source id from its name, language and
// version: the first eight bytes of MD5("<lower(name)>/<lang>/<version>")
// read big-endian, with the sign bit cleared.
func GenerateID(name, lang string, version int) int64 {
	key := fmt.Sprintf("%s/%s/%d", strings.ToLower(name), lang, version)
	sum := md5.Sum([]byte(key))
	return int64(binary.BigEndian.Uint64(sum[:8]) & math.MaxInt64)
}

func (r *ExecRuntime) invoke(ctx context.Context, entry, pkgName, pkgDir string, stdin any, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, entry, args...)
	cmd.Dir = pkgDir
	env := os.Environ()
	env = setEnv(env, branding.EnvVar("PACKAGE"), pkgName)
	env = setEnv(env, branding.EnvVar("PACKAGE_DIR"), pkgDir)
	cmd.Env = env

	if stdin != nil {
		in, err := json.Marshal(stdin)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", args[0], err)
		}
		cmd.Stdin = bytes.NewReader(in)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %s exited with code %d: %s",
				filepath.Base(entry), args[0], exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("running %s %s: %w", filepath.Base(entry), args[0], err)
	}
	return stdout.Bytes(), nil
}

func (r *ExecRuntime) newSource(d sourceDescriptor, entry, pkgName, pkgDir string) source.Source {
	base := &execSource{rt: r, desc: d, entry: entry, pkgName: pkgName, pkgDir: pkgDir}
	conf := slices.Contains(d.Capabilities, CapConfigurable)
	login := slices.Contains(d.Capabilities, CapLogin)
	switch {
	case conf && login:
		return &execFullSource{base}
	case conf:
		return &execConfigurableSource{base}
	case login:
		return &execLoginSource{base}
	}
	return base
}

// setEnv sets or replaces an environment variable in the env slice.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
