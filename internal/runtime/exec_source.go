package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sourcekit/extmgr/internal/source"
)

// execSource is a catalogue source backed by an extension executable.
type execSource struct {
	rt      *ExecRuntime
	desc    sourceDescriptor
	entry   string
	pkgName string
	pkgDir  string
}

func (s *execSource) ID() int64      { return s.desc.ID }
func (s *execSource) Name() string   { return s.desc.Name }
func (s *execSource) Lang() string   { return s.desc.Lang }
func (s *execSource) String() string { return s.desc.Name + " (" + s.desc.Lang + ")" }

func (s *execSource) call(ctx context.Context, op string, req any) error {
	out, err := s.rt.invokeFor(ctx, s, op, req)
	if err != nil {
		return err
	}
	var res opResult
	if err := json.Unmarshal(out, &res); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	if !res.OK {
		if res.Error != "" {
			return fmt.Errorf("%s rejected by %s: %w", op, s.desc.Name, errors.New(res.Error))
		}
		return fmt.Errorf("%s rejected by %s", op, s.desc.Name)
	}
	return nil
}

func (r *ExecRuntime) invokeFor(ctx context.Context, s *execSource, op string, req any) ([]byte, error) {
	return r.invoke(ctx, s.entry, s.pkgName, s.pkgDir, req, op, strconv.FormatInt(s.desc.ID, 10))
}

type execConfigurableSource struct{ *execSource }

func (s *execConfigurableSource) Configure(ctx context.Context, prefs map[string]string) error {
	return s.call(ctx, "configure", prefs)
}

type execLoginSource struct{ *execSource }

func (s *execLoginSource) Login(ctx context.Context, username, password string) error {
	return s.call(ctx, "login", map[string]string{"username": username, "password": password})
}

type execFullSource struct{ *execSource }

func (s *execFullSource) Configure(ctx context.Context, prefs map[string]string) error {
	return s.call(ctx, "configure", prefs)
}

func (s *execFullSource) Login(ctx context.Context, username, password string) error {
	return s.call(ctx, "login", map[string]string{"username": username, "password": password})
}

// execFactory hands out the sources a factory executable described.
type execFactory struct {
	sources []source.Source
}

func (f *execFactory) CreateSources() ([]source.Source, error) {
	return f.sources, nil
}

var (
	_ source.CatalogueSource = (*execSource)(nil)
	_ source.Configurable    = (*execConfigurableSource)(nil)
	_ source.LoginCapable    = (*execLoginSource)(nil)
	_ source.Configurable    = (*execFullSource)(nil)
	_ source.LoginCapable    = (*execFullSource)(nil)
	_ source.Factory         = (*execFactory)(nil)
)
