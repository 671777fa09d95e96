package receiver

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/pkghost"
)

type recorder struct {
	calls []string
}

func (r *recorder) OnExtensionInstalled(ext extension.Installed) {
	r.calls = append(r.calls, "installed:"+ext.PkgName)
}

func (r *recorder) OnExtensionUpdated(ext extension.Installed) {
	r.calls = append(r.calls, "updated:"+ext.PkgName)
}

func (r *recorder) OnExtensionUntrusted(ext extension.Untrusted) {
	r.calls = append(r.calls, "untrusted:"+ext.PkgName)
}

func (r *recorder) OnExtensionUninstalled(pkgName string) {
	r.calls = append(r.calls, "uninstalled:"+pkgName)
}

type stubLoader struct {
	results map[string]extension.LoadResult
	loads   []string
}

func (s *stubLoader) LoadOne(_ context.Context, pkgName string) extension.LoadResult {
	s.loads = append(s.loads, pkgName)
	if r, ok := s.results[pkgName]; ok {
		return r
	}
	return extension.LoadFailure{PkgName: pkgName, Err: extension.ErrNotExtension}
}

func TestReceiver_Run(t *testing.T) {
	loader := &stubLoader{results: map[string]extension.LoadResult{
		"p.ok":        extension.LoadSuccess{Extension: extension.Installed{PkgName: "p.ok"}},
		"p.untrusted": extension.LoadUntrusted{Extension: extension.Untrusted{PkgName: "p.untrusted"}},
		"p.broken":    extension.LoadFailure{PkgName: "p.broken", Err: extension.ErrMalformedExtension},
	}}
	rec := &recorder{}

	events := make(chan pkghost.Event, 16)
	for _, ev := range []pkghost.Event{
		{Kind: pkghost.EventAdded, PkgName: "p.ok"},
		{Kind: pkghost.EventAdded, PkgName: "p.untrusted"},
		{Kind: pkghost.EventAdded, PkgName: "p.broken"},
		{Kind: pkghost.EventAdded, PkgName: "com.other"},
		// An update arrives as Removed(replacing), Added(replacing), Replaced.
		{Kind: pkghost.EventRemoved, PkgName: "p.ok", Replacing: true},
		{Kind: pkghost.EventAdded, PkgName: "p.ok", Replacing: true},
		{Kind: pkghost.EventReplaced, PkgName: "p.ok"},
		{Kind: pkghost.EventReplaced, PkgName: "p.untrusted"},
		{Kind: pkghost.EventRemoved, PkgName: "p.ok"},
	} {
		events <- ev
	}
	close(events)

	New(loader, rec, logr.Discard()).Run(context.Background(), events)

	want := []string{
		"installed:p.ok",
		"untrusted:p.untrusted",
		"updated:p.ok",
		"untrusted:p.untrusted",
		"uninstalled:p.ok",
	}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v\nwant    %v", rec.calls, want)
	}

	// Removals and replacing halves never load.
	wantLoads := []string{"p.ok", "p.untrusted", "p.broken", "com.other", "p.ok", "p.untrusted"}
	if !slices.Equal(loader.loads, wantLoads) {
		t.Errorf("loads = %v\nwant    %v", loader.loads, wantLoads)
	}
}

func TestReceiver_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		New(&stubLoader{}, &recorder{}, logr.Discard()).Run(ctx, make(chan pkghost.Event))
		close(done)
	}()
	<-done
}

func TestReceiver_FailureIsNotReported(t *testing.T) {
	rec := &recorder{}
	loader := &stubLoader{results: map[string]extension.LoadResult{
		"p.x": extension.LoadFailure{PkgName: "p.x", Err: errors.New("boom")},
	}}
	New(loader, rec, logr.Discard()).Handle(context.Background(), pkghost.Event{Kind: pkghost.EventReplaced, PkgName: "p.x"})
	if len(rec.calls) != 0 {
		t.Errorf("failure produced callbacks: %v", rec.calls)
	}
}
